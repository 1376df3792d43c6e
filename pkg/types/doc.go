// Package types 定义 go-federate 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - handles.go  - RTI 句柄、属性/参数值映射
//   - time.go     - 逻辑时间与时间算术
//   - entity.go   - 实体 ID 与归属（Local/Remote）
//   - enums.go    - Sharing 共享意图
//   - specs.go    - 对象类/交互类声明规格
//   - events.go   - 事件总线事件类型
//   - errors.go   - 公共错误定义与致命错误分类
package types
