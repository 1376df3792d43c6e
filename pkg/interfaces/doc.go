// Package interfaces 定义 go-federate 的公共接口
//
// 本包只包含接口和选项类型，实现位于 internal/ 与 pkg/lib/：
//   - rti.go       - RTIAmbassador（上游协议，由外部 RTI 实现）与 FederateAmbassador（回调）
//   - world.go     - World 实体组件引擎（下游，由外部引擎实现）
//   - convert.go   - Converter / MultiConverter / Archetype 转换层
//   - eventbus.go  - 事件总线
package interfaces
