package interfaces

import "github.com/dep2p/go-federate/pkg/types"

// Converter 单字段转换器：组件字段 ↔ 属性/参数线格式
//
// Encode 对结构完整的实体不会失败；Decode 失败时必须保持组件原状。
type Converter interface {
	Encode(w World, id types.EntityID) ([]byte, error)
	Decode(w World, id types.EntityID, data []byte) error
}

// MultiConverter 多字段转换器
//
// 一个共享实例服务多个字段，调用时通过 trigger 区分字段。
// 使用 trigger k 解码只允许修改绑定到 k 的字段。
type MultiConverter interface {
	Encode(w World, id types.EntityID, trigger int) ([]byte, error)
	Decode(w World, id types.EntityID, trigger int, data []byte) error
}

// Archetype 原型工厂：创建能接收某个类数据的实体
type Archetype func(w World) (types.EntityID, error)

// ConverterFactory 单字段转换器工厂
type ConverterFactory func() Converter

// MultiConverterFactory 多字段转换器工厂
type MultiConverterFactory func() MultiConverter
