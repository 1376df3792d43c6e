package registry

import (
	"fmt"
	"sync"

	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/types"
)

// InteractionClass 交互类描述符
type InteractionClass struct {
	mu       sync.Mutex
	spec     types.InteractionClassSpec
	registry *Registry

	handle   types.InteractionClassHandle
	resolved bool

	fields   []*Field
	byName   map[string]*Field
	byHandle map[types.ParameterHandle]*Field

	published  bool
	subscribed bool
}

func newInteractionClass(r *Registry, spec types.InteractionClassSpec) *InteractionClass {
	fields, byName := newFields(r, spec.Parameters)
	return &InteractionClass{
		spec:     spec,
		registry: r,
		fields:   fields,
		byName:   byName,
		byHandle: make(map[types.ParameterHandle]*Field, len(fields)),
	}
}

// Name 返回类名
func (ic *InteractionClass) Name() string { return ic.spec.Name }

// Manual 是否排除在批量声明之外
func (ic *InteractionClass) Manual() bool { return ic.spec.Manual }

// Sharing 返回类级共享意图
func (ic *InteractionClass) Sharing() types.Sharing { return ic.spec.Sharing }

// Archetype 返回原型工厂
func (ic *InteractionClass) Archetype() (interfaces.Archetype, error) {
	return ic.registry.Archetype(ic.spec.Archetype)
}

// Parameters 返回所有参数（声明顺序）
func (ic *InteractionClass) Parameters() []*Field { return ic.fields }

// Parameter 按名字查找参数
func (ic *InteractionClass) Parameter(name string) (*Field, bool) {
	f, ok := ic.byName[name]
	return f, ok
}

// ParameterByHandle 按已解析句柄查找参数
func (ic *InteractionClass) ParameterByHandle(h types.ParameterHandle) (*Field, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	f, ok := ic.byHandle[h]
	return f, ok
}

// IsPublished 是否已发布
func (ic *InteractionClass) IsPublished() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.published
}

// IsSubscribed 是否已订阅
func (ic *InteractionClass) IsSubscribed() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.subscribed
}

// State 返回声明状态
func (ic *InteractionClass) State() DeclarationState {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return stateOf(ic.published, ic.subscribed)
}

// ResolvedHandle 返回已解析的类句柄
func (ic *InteractionClass) ResolvedHandle() (types.InteractionClassHandle, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.handle, ic.resolved
}

// ParameterHandle 返回参数句柄，必要时向 RTI 解析
func (ic *InteractionClass) ParameterHandle(rti interfaces.RTIAmbassador, name string) (types.ParameterHandle, error) {
	if rti == nil {
		return 0, types.Fatal(types.ErrNotConnected)
	}
	f, ok := ic.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", types.ErrUnknownField, ic.spec.Name, name)
	}
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.resolveParameterLocked(rti, f)
}

func (ic *InteractionClass) resolveClassLocked(rti interfaces.RTIAmbassador) (types.InteractionClassHandle, error) {
	if ic.resolved {
		return ic.handle, nil
	}
	h, err := rti.GetInteractionClassHandle(ic.spec.Name)
	if err != nil {
		logger.Error("解析交互类句柄失败", "class", ic.spec.Name, "error", err)
		return 0, types.Fatal(fmt.Errorf("resolve interaction class %s: %w", ic.spec.Name, err))
	}
	ic.handle = h
	ic.resolved = true
	ic.registry.indexInteraction(h, ic)
	return h, nil
}

func (ic *InteractionClass) resolveParameterLocked(rti interfaces.RTIAmbassador, f *Field) (types.ParameterHandle, error) {
	if h, ok := f.ParameterHandle(); ok {
		return h, nil
	}
	ch, err := ic.resolveClassLocked(rti)
	if err != nil {
		return 0, err
	}
	h, err := rti.GetParameterHandle(ch, f.Name())
	if err != nil {
		logger.Error("解析参数句柄失败", "class", ic.spec.Name, "parameter", f.Name(), "error", err)
		return 0, types.Fatal(fmt.Errorf("resolve parameter %s.%s: %w", ic.spec.Name, f.Name(), err))
	}
	f.setHandle(uint64(h))
	ic.byHandle[h] = f
	return h, nil
}

// resolveAll 解析类句柄与全部参数句柄
func (ic *InteractionClass) resolveAll(rti interfaces.RTIAmbassador) (types.InteractionClassHandle, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ch, err := ic.resolveClassLocked(rti)
	if err != nil {
		return 0, err
	}
	for _, f := range ic.fields {
		if _, err := ic.resolveParameterLocked(rti, f); err != nil {
			return 0, err
		}
	}
	return ch, nil
}

// Publish 发布交互类；已发布时为带警告的空操作
func (ic *InteractionClass) Publish(rti interfaces.RTIAmbassador) error {
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}
	if ic.IsPublished() {
		logger.Warn("交互类已发布，忽略重复 publish", "class", ic.spec.Name)
		return nil
	}
	ch, err := ic.resolveAll(rti)
	if err != nil {
		return err
	}
	if err := rti.PublishInteractionClass(ch); err != nil {
		logger.Error("发布交互类失败", "class", ic.spec.Name, "error", err)
		return fmt.Errorf("publish %s: %w", ic.spec.Name, err)
	}

	ic.mu.Lock()
	ic.published = true
	ic.mu.Unlock()
	logger.Info("交互类已发布", "class", ic.spec.Name)
	return nil
}

// Subscribe 订阅交互类；已订阅时为带警告的空操作
func (ic *InteractionClass) Subscribe(rti interfaces.RTIAmbassador) error {
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}
	if ic.IsSubscribed() {
		logger.Warn("交互类已订阅，忽略重复 subscribe", "class", ic.spec.Name)
		return nil
	}
	ch, err := ic.resolveAll(rti)
	if err != nil {
		return err
	}
	if err := rti.SubscribeInteractionClass(ch); err != nil {
		logger.Error("订阅交互类失败", "class", ic.spec.Name, "error", err)
		return fmt.Errorf("subscribe %s: %w", ic.spec.Name, err)
	}

	ic.mu.Lock()
	ic.subscribed = true
	ic.mu.Unlock()
	logger.Info("交互类已订阅", "class", ic.spec.Name)
	return nil
}
