package registry

import (
	"fmt"
	"sync/atomic"

	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/types"
)

// Binding 字段到共享转换器实例的已解析绑定
type Binding struct {
	ref    types.ConverterRef
	single interfaces.Converter
	multi  interfaces.MultiConverter
}

// Ref 返回绑定引用
func (b Binding) Ref() types.ConverterRef {
	return b.ref
}

// Encode 编码实体对应字段
func (b Binding) Encode(w interfaces.World, id types.EntityID) ([]byte, error) {
	switch {
	case b.multi != nil:
		return b.multi.Encode(w, id, b.ref.Trigger)
	case b.single != nil:
		return b.single.Encode(w, id)
	default:
		return nil, fmt.Errorf("%w: unbound %q", types.ErrUnknownConverter, b.ref.Name)
	}
}

// Decode 解码到实体对应字段
func (b Binding) Decode(w interfaces.World, id types.EntityID, data []byte) error {
	switch {
	case b.multi != nil:
		return b.multi.Decode(w, id, b.ref.Trigger, data)
	case b.single != nil:
		return b.single.Decode(w, id, data)
	default:
		return fmt.Errorf("%w: unbound %q", types.ErrUnknownConverter, b.ref.Name)
	}
}

// ============================================================================
//                              字段
// ============================================================================

// Field 属性或参数描述
//
// 句柄在首次解析后缓存，描述符生命周期内不再改变。
type Field struct {
	spec     types.FieldSpec
	registry *Registry
	handle   atomic.Uint64
	resolved atomic.Bool
}

// Name 返回字段名
func (f *Field) Name() string { return f.spec.Name }

// Sharing 返回共享意图
func (f *Field) Sharing() types.Sharing { return f.spec.Sharing }

// Required 反射时是否必须出现
func (f *Field) Required() bool { return f.spec.Required }

// AttributeHandle 返回已解析的属性句柄
func (f *Field) AttributeHandle() (types.AttributeHandle, bool) {
	if !f.resolved.Load() {
		return 0, false
	}
	return types.AttributeHandle(f.handle.Load()), true
}

// ParameterHandle 返回已解析的参数句柄
func (f *Field) ParameterHandle() (types.ParameterHandle, bool) {
	if !f.resolved.Load() {
		return 0, false
	}
	return types.ParameterHandle(f.handle.Load()), true
}

// setHandle 写入句柄；只在持有所属类的锁时调用
func (f *Field) setHandle(h uint64) {
	f.handle.Store(h)
	f.resolved.Store(true)
}

// Binding 返回解析后的转换器绑定
func (f *Field) Binding() (Binding, error) {
	return f.registry.binding(f.spec.Converter)
}

// Encode 通过绑定的转换器编码
func (f *Field) Encode(w interfaces.World, id types.EntityID) ([]byte, error) {
	b, err := f.Binding()
	if err != nil {
		return nil, err
	}
	return b.Encode(w, id)
}

// Decode 通过绑定的转换器解码
func (f *Field) Decode(w interfaces.World, id types.EntityID, data []byte) error {
	b, err := f.Binding()
	if err != nil {
		return err
	}
	return b.Decode(w, id, data)
}

func newFields(r *Registry, specs []types.FieldSpec) ([]*Field, map[string]*Field) {
	list := make([]*Field, 0, len(specs))
	byName := make(map[string]*Field, len(specs))
	for _, s := range specs {
		f := &Field{spec: s, registry: r}
		list = append(list, f)
		byName[s.Name] = f
	}
	return list, byName
}
