// Package registry 实现类声明注册表
//
// 注册表保存：
//   - 对象类 / 交互类描述符（名字 → 描述符，解析后的句柄 → 描述符）
//   - 转换器工厂与共享实例（每个名字一个实例，被所有使用它的字段共享）
//   - 原型工厂（类名 → 实体构造函数）
//
// 所有工厂通过显式注册表登记，不按字符串反射构造。
package registry

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/log"
	"github.com/dep2p/go-federate/pkg/types"
)

var logger = log.Logger("core/registry")

// Registry 类声明注册表
type Registry struct {
	mu sync.RWMutex

	objects      map[string]*ObjectClass
	objectOrder  []*ObjectClass
	interactions map[string]*InteractionClass
	interOrder   []*InteractionClass

	objectsByHandle      map[types.ObjectClassHandle]*ObjectClass
	interactionsByHandle map[types.InteractionClassHandle]*InteractionClass

	converterFactories map[string]interfaces.ConverterFactory
	multiFactories     map[string]interfaces.MultiConverterFactory
	converters         map[string]interfaces.Converter
	multis             map[string]interfaces.MultiConverter

	archetypes map[string]interfaces.Archetype
}

// New 创建空注册表
func New() *Registry {
	return &Registry{
		objects:              make(map[string]*ObjectClass),
		interactions:         make(map[string]*InteractionClass),
		objectsByHandle:      make(map[types.ObjectClassHandle]*ObjectClass),
		interactionsByHandle: make(map[types.InteractionClassHandle]*InteractionClass),
		converterFactories:   make(map[string]interfaces.ConverterFactory),
		multiFactories:       make(map[string]interfaces.MultiConverterFactory),
		converters:           make(map[string]interfaces.Converter),
		multis:               make(map[string]interfaces.MultiConverter),
		archetypes:           make(map[string]interfaces.Archetype),
	}
}

// ============================================================================
//                              类注册
// ============================================================================

// RegisterObjectClass 注册对象类
func (r *Registry) RegisterObjectClass(spec types.ObjectClassSpec) (*ObjectClass, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.objects[spec.Name]; ok {
		return nil, fmt.Errorf("%w: %s", types.ErrClassExists, spec.Name)
	}
	oc := newObjectClass(r, spec)
	r.objects[spec.Name] = oc
	r.objectOrder = append(r.objectOrder, oc)

	logger.Debug("注册对象类", "class", spec.Name, "attributes", len(spec.Attributes), "manual", spec.Manual)
	return oc, nil
}

// RegisterInteractionClass 注册交互类
func (r *Registry) RegisterInteractionClass(spec types.InteractionClassSpec) (*InteractionClass, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.interactions[spec.Name]; ok {
		return nil, fmt.Errorf("%w: %s", types.ErrClassExists, spec.Name)
	}
	ic := newInteractionClass(r, spec)
	r.interactions[spec.Name] = ic
	r.interOrder = append(r.interOrder, ic)

	logger.Debug("注册交互类", "class", spec.Name, "parameters", len(spec.Parameters), "manual", spec.Manual)
	return ic, nil
}

// LoadSpecs 批量注册（通常来自配置）
func (r *Registry) LoadSpecs(objects []types.ObjectClassSpec, interactions []types.InteractionClassSpec) error {
	var errs error
	for _, s := range objects {
		if _, err := r.RegisterObjectClass(s); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	for _, s := range interactions {
		if _, err := r.RegisterInteractionClass(s); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// ObjectClass 按名字查找对象类
func (r *Registry) ObjectClass(name string) (*ObjectClass, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	oc, ok := r.objects[name]
	return oc, ok
}

// InteractionClass 按名字查找交互类
func (r *Registry) InteractionClass(name string) (*InteractionClass, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ic, ok := r.interactions[name]
	return ic, ok
}

// ObjectClassByHandle 按已解析的句柄查找对象类
func (r *Registry) ObjectClassByHandle(h types.ObjectClassHandle) (*ObjectClass, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	oc, ok := r.objectsByHandle[h]
	return oc, ok
}

// InteractionClassByHandle 按已解析的句柄查找交互类
func (r *Registry) InteractionClassByHandle(h types.InteractionClassHandle) (*InteractionClass, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ic, ok := r.interactionsByHandle[h]
	return ic, ok
}

// ObjectClasses 返回所有对象类（注册顺序）
func (r *Registry) ObjectClasses() []*ObjectClass {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ObjectClass, len(r.objectOrder))
	copy(out, r.objectOrder)
	return out
}

// InteractionClasses 返回所有交互类（注册顺序）
func (r *Registry) InteractionClasses() []*InteractionClass {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*InteractionClass, len(r.interOrder))
	copy(out, r.interOrder)
	return out
}

func (r *Registry) indexObject(h types.ObjectClassHandle, oc *ObjectClass) {
	r.mu.Lock()
	r.objectsByHandle[h] = oc
	r.mu.Unlock()
}

func (r *Registry) indexInteraction(h types.InteractionClassHandle, ic *InteractionClass) {
	r.mu.Lock()
	r.interactionsByHandle[h] = ic
	r.mu.Unlock()
}

// ============================================================================
//                              转换器与原型
// ============================================================================

// RegisterConverter 登记单字段转换器工厂
func (r *Registry) RegisterConverter(name string, f interfaces.ConverterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converterFactories[name] = f
	delete(r.converters, name)
}

// RegisterMultiConverter 登记多字段转换器工厂
func (r *Registry) RegisterMultiConverter(name string, f interfaces.MultiConverterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.multiFactories[name] = f
	delete(r.multis, name)
}

// RegisterArchetype 登记原型工厂
func (r *Registry) RegisterArchetype(name string, a interfaces.Archetype) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archetypes[name] = a
}

// Converter 返回名字对应的共享单字段转换器，首次调用时实例化
func (r *Registry) Converter(name string) (interfaces.Converter, error) {
	r.mu.RLock()
	c, ok := r.converters[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.converters[name]; ok {
		return c, nil
	}
	f, ok := r.converterFactories[name]
	if !ok {
		if _, multi := r.multiFactories[name]; multi {
			return nil, fmt.Errorf("%w: %q is a multi converter", types.ErrConverterKind, name)
		}
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownConverter, name)
	}
	c = f()
	r.converters[name] = c
	return c, nil
}

// MultiConverter 返回名字对应的共享多字段转换器，首次调用时实例化
func (r *Registry) MultiConverter(name string) (interfaces.MultiConverter, error) {
	r.mu.RLock()
	m, ok := r.multis[name]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.multis[name]; ok {
		return m, nil
	}
	f, ok := r.multiFactories[name]
	if !ok {
		if _, single := r.converterFactories[name]; single {
			return nil, fmt.Errorf("%w: %q is a single converter", types.ErrConverterKind, name)
		}
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownConverter, name)
	}
	m = f()
	r.multis[name] = m
	return m, nil
}

// Archetype 返回名字对应的原型工厂
func (r *Registry) Archetype(name string) (interfaces.Archetype, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.archetypes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownArchetype, name)
	}
	return a, nil
}

// binding 解析字段绑定
func (r *Registry) binding(ref types.ConverterRef) (Binding, error) {
	if ref.Multi {
		m, err := r.MultiConverter(ref.Name)
		if err != nil {
			return Binding{}, err
		}
		return Binding{ref: ref, multi: m}, nil
	}
	c, err := r.Converter(ref.Name)
	if err != nil {
		return Binding{}, err
	}
	return Binding{ref: ref, single: c}, nil
}

// ============================================================================
//                              校验与批量声明
// ============================================================================

// Validate 校验所有共享字段的转换器以及所有类的原型均已登记
func (r *Registry) Validate() error {
	var errs error
	for _, oc := range r.ObjectClasses() {
		if _, err := r.Archetype(oc.spec.Archetype); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("object class %s: %w", oc.Name(), err))
		}
		for _, a := range oc.fields {
			if a.spec.Sharing == types.SharingNone {
				continue
			}
			if _, err := r.binding(a.spec.Converter); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s.%s: %w", oc.Name(), a.Name(), err))
			}
		}
	}
	for _, ic := range r.InteractionClasses() {
		if _, err := r.Archetype(ic.spec.Archetype); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("interaction class %s: %w", ic.Name(), err))
		}
		for _, p := range ic.fields {
			if p.spec.Sharing == types.SharingNone {
				continue
			}
			if _, err := r.binding(p.spec.Converter); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s.%s: %w", ic.Name(), p.Name(), err))
			}
		}
	}
	return errs
}

// PublishAll 发布所有非手动声明的类
//
// 对象类仅在存在发布意图的属性时发布；交互类按类级共享意图发布。
// 单个类的失败不会中断其他类，错误合并返回。
func (r *Registry) PublishAll(rti interfaces.RTIAmbassador) error {
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}
	var errs error
	for _, oc := range r.ObjectClasses() {
		if oc.Manual() || !oc.hasIntent(types.Sharing.Publishes) || oc.IsPublished() {
			continue
		}
		errs = multierr.Append(errs, oc.Publish(rti))
	}
	for _, ic := range r.InteractionClasses() {
		if ic.Manual() || !ic.spec.Sharing.Publishes() || ic.IsPublished() {
			continue
		}
		errs = multierr.Append(errs, ic.Publish(rti))
	}
	return errs
}

// SubscribeAll 订阅所有非手动声明的类
func (r *Registry) SubscribeAll(rti interfaces.RTIAmbassador) error {
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}
	var errs error
	for _, oc := range r.ObjectClasses() {
		if oc.Manual() || !oc.hasIntent(types.Sharing.Subscribes) || oc.IsSubscribed() {
			continue
		}
		errs = multierr.Append(errs, oc.Subscribe(rti))
	}
	for _, ic := range r.InteractionClasses() {
		if ic.Manual() || !ic.spec.Sharing.Subscribes() || ic.IsSubscribed() {
			continue
		}
		errs = multierr.Append(errs, ic.Subscribe(rti))
	}
	return errs
}

// DeclareAll 发布并订阅所有非手动声明的类
func (r *Registry) DeclareAll(rti interfaces.RTIAmbassador) error {
	return multierr.Combine(r.PublishAll(rti), r.SubscribeAll(rti))
}
