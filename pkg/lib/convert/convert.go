// Package convert 提供构建转换器的工具
//
// 三种构件：
//   - Field：组件的一个字段 ↔ 一个属性/参数（单用途转换器）
//   - Multi：一个共享实例服务多个字段，按 trigger 分发
//   - Opaque：整个组件以 msgpack 编码为 HLAopaqueData
//
// 示例：
//
//	pos := convert.Field(encoding.Vector3LE,
//	    func(p *Position) encoding.Vector3 { return p.Value },
//	    func(p *Position, v encoding.Vector3) { p.Value = v })
package convert

import (
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/ecs"
	"github.com/dep2p/go-federate/pkg/lib/encoding"
	"github.com/dep2p/go-federate/pkg/types"
)

// ============================================================================
//                              Field
// ============================================================================

type field[C any, V any] struct {
	codec encoding.Codec[V]
	get   func(*C) V
	set   func(*C, V)
}

// Field 创建组件 C 中某个字段的单用途转换器
//
// 解码先得到完整的值再赋值，失败时组件保持原状。
func Field[C any, V any](codec encoding.Codec[V], get func(*C) V, set func(*C, V)) interfaces.Converter {
	return &field[C, V]{codec: codec, get: get, set: set}
}

func (f *field[C, V]) Encode(w interfaces.World, id types.EntityID) ([]byte, error) {
	c, err := ecs.MustGet[C](w, id)
	if err != nil {
		return nil, err
	}
	return f.codec.Encode(f.get(c)), nil
}

func (f *field[C, V]) Decode(w interfaces.World, id types.EntityID, data []byte) error {
	c, err := ecs.MustGet[C](w, id)
	if err != nil {
		return err
	}
	v, err := f.codec.Decode(data)
	if err != nil {
		return err
	}
	f.set(c, v)
	return nil
}

// ============================================================================
//                              Multi
// ============================================================================

// Multi 按 trigger 分发的多字段转换器
type Multi struct {
	fields map[int]interfaces.Converter
}

var _ interfaces.MultiConverter = (*Multi)(nil)

// NewMulti 创建空的多字段转换器
func NewMulti() *Multi {
	return &Multi{fields: make(map[int]interfaces.Converter)}
}

// Bind 把 trigger 绑定到一个字段转换器，返回自身便于链式调用
func (m *Multi) Bind(trigger int, c interfaces.Converter) *Multi {
	m.fields[trigger] = c
	return m
}

// Triggers 返回已绑定的 trigger（升序）
func (m *Multi) Triggers() []int {
	out := make([]int, 0, len(m.fields))
	for k := range m.fields {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (m *Multi) lookup(trigger int) (interfaces.Converter, error) {
	c, ok := m.fields[trigger]
	if !ok {
		return nil, fmt.Errorf("%w: trigger %d not bound", types.ErrUnknownField, trigger)
	}
	return c, nil
}

// Encode 编码 trigger 对应的字段
func (m *Multi) Encode(w interfaces.World, id types.EntityID, trigger int) ([]byte, error) {
	c, err := m.lookup(trigger)
	if err != nil {
		return nil, err
	}
	return c.Encode(w, id)
}

// Decode 只解码 trigger 对应的字段
func (m *Multi) Decode(w interfaces.World, id types.EntityID, trigger int, data []byte) error {
	c, err := m.lookup(trigger)
	if err != nil {
		return err
	}
	return c.Decode(w, id, data)
}

// ============================================================================
//                              Opaque
// ============================================================================

type opaque[C any] struct{}

// Opaque 创建把整个 C 组件编码为 HLAopaqueData(msgpack) 的转换器
//
// 适用于联邦内约定私有格式的组件；组件字段使用 msgpack 标签控制编码。
func Opaque[C any]() interfaces.Converter {
	return opaque[C]{}
}

func (opaque[C]) Encode(w interfaces.World, id types.EntityID) ([]byte, error) {
	c, err := ecs.MustGet[C](w, id)
	if err != nil {
		return nil, err
	}
	b, err := msgpack.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("msgpack encode %T: %w", c, err)
	}
	return encoding.Opaque.Encode(b), nil
}

func (opaque[C]) Decode(w interfaces.World, id types.EntityID, data []byte) error {
	c, err := ecs.MustGet[C](w, id)
	if err != nil {
		return err
	}
	raw, err := encoding.Opaque.Decode(data)
	if err != nil {
		return err
	}
	var tmp C
	if err := msgpack.Unmarshal(raw, &tmp); err != nil {
		return fmt.Errorf("%w: msgpack: %v", types.ErrMalformedValue, err)
	}
	*c = tmp
	return nil
}
