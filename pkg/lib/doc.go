// Package lib 包含基础设施工具库
//
// 本目录包含与具体联邦无关的通用工具库：
//
//   - log: 日志封装
//   - encoding: HLA 基本数据表示（整数、浮点、字符串、定长数组）
//   - convert: 属性/参数与实体组件之间的转换器工具
//   - ecs: 组件类型化访问与内存实体引擎
//
// # 与 pkg/ 其他目录的关系
//
// pkg/ 目录包含三类内容：
//
//   - interfaces/: 组件公共接口（架构核心）
//   - types/: 公共类型定义（架构核心）
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import (
//	    "github.com/dep2p/go-federate/pkg/lib/convert"
//	    "github.com/dep2p/go-federate/pkg/lib/encoding"
//	    "github.com/dep2p/go-federate/pkg/lib/log"
//	)
package lib
