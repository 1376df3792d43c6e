package registry

import (
	"fmt"
	"sync"

	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/types"
)

// DeclarationState 声明状态
type DeclarationState int

const (
	// Undeclared 未声明
	Undeclared DeclarationState = iota
	// Published 已发布
	Published
	// Subscribed 已订阅
	Subscribed
	// PublishedAndSubscribed 已发布且已订阅
	PublishedAndSubscribed
)

// String 返回状态字符串表示
func (s DeclarationState) String() string {
	switch s {
	case Undeclared:
		return "undeclared"
	case Published:
		return "published"
	case Subscribed:
		return "subscribed"
	case PublishedAndSubscribed:
		return "published+subscribed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func stateOf(published, subscribed bool) DeclarationState {
	switch {
	case published && subscribed:
		return PublishedAndSubscribed
	case published:
		return Published
	case subscribed:
		return Subscribed
	default:
		return Undeclared
	}
}

// ============================================================================
//                              ObjectClass
// ============================================================================

// ObjectClass 对象类描述符
//
// 句柄惰性解析并缓存；Publish/Subscribe 幂等。声明调用只由驱动线程发起，
// 回调线程只读取已解析的句柄。
type ObjectClass struct {
	mu       sync.Mutex
	spec     types.ObjectClassSpec
	registry *Registry

	handle   types.ObjectClassHandle
	resolved bool

	fields   []*Field
	byName   map[string]*Field
	byHandle map[types.AttributeHandle]*Field

	published  bool
	subscribed bool
}

func newObjectClass(r *Registry, spec types.ObjectClassSpec) *ObjectClass {
	fields, byName := newFields(r, spec.Attributes)
	return &ObjectClass{
		spec:     spec,
		registry: r,
		fields:   fields,
		byName:   byName,
		byHandle: make(map[types.AttributeHandle]*Field, len(fields)),
	}
}

// Name 返回类名
func (oc *ObjectClass) Name() string { return oc.spec.Name }

// Manual 是否排除在批量声明之外
func (oc *ObjectClass) Manual() bool { return oc.spec.Manual }

// ArchetypeName 返回原型名
func (oc *ObjectClass) ArchetypeName() string { return oc.spec.Archetype }

// Archetype 返回原型工厂
func (oc *ObjectClass) Archetype() (interfaces.Archetype, error) {
	return oc.registry.Archetype(oc.spec.Archetype)
}

// Attributes 返回所有属性（声明顺序）
func (oc *ObjectClass) Attributes() []*Field { return oc.fields }

// Attribute 按名字查找属性
func (oc *ObjectClass) Attribute(name string) (*Field, bool) {
	f, ok := oc.byName[name]
	return f, ok
}

// AttributeByHandle 按已解析句柄查找属性
func (oc *ObjectClass) AttributeByHandle(h types.AttributeHandle) (*Field, bool) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	f, ok := oc.byHandle[h]
	return f, ok
}

// IsPublished 是否已发布
func (oc *ObjectClass) IsPublished() bool {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.published
}

// IsSubscribed 是否已订阅
func (oc *ObjectClass) IsSubscribed() bool {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.subscribed
}

// State 返回声明状态
func (oc *ObjectClass) State() DeclarationState {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return stateOf(oc.published, oc.subscribed)
}

// ResolvedHandle 返回已解析的类句柄
func (oc *ObjectClass) ResolvedHandle() (types.ObjectClassHandle, bool) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.handle, oc.resolved
}

// Handle 返回类句柄，必要时向 RTI 解析
func (oc *ObjectClass) Handle(rti interfaces.RTIAmbassador) (types.ObjectClassHandle, error) {
	if rti == nil {
		return 0, types.Fatal(types.ErrNotConnected)
	}
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.resolveClassLocked(rti)
}

func (oc *ObjectClass) resolveClassLocked(rti interfaces.RTIAmbassador) (types.ObjectClassHandle, error) {
	if oc.resolved {
		return oc.handle, nil
	}
	h, err := rti.GetObjectClassHandle(oc.spec.Name)
	if err != nil {
		logger.Error("解析对象类句柄失败", "class", oc.spec.Name, "error", err)
		return 0, types.Fatal(fmt.Errorf("resolve object class %s: %w", oc.spec.Name, err))
	}
	oc.handle = h
	oc.resolved = true
	oc.registry.indexObject(h, oc)
	return h, nil
}

// AttributeHandle 返回属性句柄，必要时向 RTI 解析；同一属性始终返回同一句柄
func (oc *ObjectClass) AttributeHandle(rti interfaces.RTIAmbassador, name string) (types.AttributeHandle, error) {
	if rti == nil {
		return 0, types.Fatal(types.ErrNotConnected)
	}
	f, ok := oc.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", types.ErrUnknownField, oc.spec.Name, name)
	}
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.resolveAttributeLocked(rti, f)
}

func (oc *ObjectClass) resolveAttributeLocked(rti interfaces.RTIAmbassador, f *Field) (types.AttributeHandle, error) {
	if h, ok := f.AttributeHandle(); ok {
		return h, nil
	}
	ch, err := oc.resolveClassLocked(rti)
	if err != nil {
		return 0, err
	}
	h, err := rti.GetAttributeHandle(ch, f.Name())
	if err != nil {
		logger.Error("解析属性句柄失败", "class", oc.spec.Name, "attribute", f.Name(), "error", err)
		return 0, types.Fatal(fmt.Errorf("resolve attribute %s.%s: %w", oc.spec.Name, f.Name(), err))
	}
	f.setHandle(uint64(h))
	oc.byHandle[h] = f
	return h, nil
}

// resolveIntent 解析类句柄与满足 intent 的属性句柄
func (oc *ObjectClass) resolveIntent(rti interfaces.RTIAmbassador, intent func(types.Sharing) bool) (types.ObjectClassHandle, types.AttributeHandleSet, error) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	ch, err := oc.resolveClassLocked(rti)
	if err != nil {
		return 0, nil, err
	}
	set := make(types.AttributeHandleSet)
	for _, f := range oc.fields {
		if !intent(f.Sharing()) {
			continue
		}
		h, err := oc.resolveAttributeLocked(rti, f)
		if err != nil {
			return 0, nil, err
		}
		set[h] = struct{}{}
	}
	return ch, set, nil
}

func (oc *ObjectClass) hasIntent(intent func(types.Sharing) bool) bool {
	for _, f := range oc.fields {
		if intent(f.Sharing()) {
			return true
		}
	}
	return false
}

// Publish 发布本类所有带发布意图的属性
//
// 已发布时为带警告的空操作。
func (oc *ObjectClass) Publish(rti interfaces.RTIAmbassador) error {
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}
	if oc.IsPublished() {
		logger.Warn("对象类已发布，忽略重复 publish", "class", oc.spec.Name)
		return nil
	}

	ch, attrs, err := oc.resolveIntent(rti, types.Sharing.Publishes)
	if err != nil {
		return err
	}
	if len(attrs) == 0 {
		return fmt.Errorf("publish %s: %w", oc.spec.Name, types.ErrNothingToDeclare)
	}
	if err := rti.PublishObjectClassAttributes(ch, attrs); err != nil {
		logger.Error("发布对象类失败", "class", oc.spec.Name, "error", err)
		return fmt.Errorf("publish %s: %w", oc.spec.Name, err)
	}

	oc.mu.Lock()
	oc.published = true
	oc.mu.Unlock()
	logger.Info("对象类已发布", "class", oc.spec.Name, "attributes", len(attrs))
	return nil
}

// Subscribe 订阅本类所有带订阅意图的属性
//
// 已订阅时为带警告的空操作。
func (oc *ObjectClass) Subscribe(rti interfaces.RTIAmbassador) error {
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}
	if oc.IsSubscribed() {
		logger.Warn("对象类已订阅，忽略重复 subscribe", "class", oc.spec.Name)
		return nil
	}

	ch, attrs, err := oc.resolveIntent(rti, types.Sharing.Subscribes)
	if err != nil {
		return err
	}
	if len(attrs) == 0 {
		return fmt.Errorf("subscribe %s: %w", oc.spec.Name, types.ErrNothingToDeclare)
	}
	if err := rti.SubscribeObjectClassAttributes(ch, attrs); err != nil {
		logger.Error("订阅对象类失败", "class", oc.spec.Name, "error", err)
		return fmt.Errorf("subscribe %s: %w", oc.spec.Name, err)
	}

	oc.mu.Lock()
	oc.subscribed = true
	oc.mu.Unlock()
	logger.Info("对象类已订阅", "class", oc.spec.Name, "attributes", len(attrs))
	return nil
}

// ============================================================================
//                              反射辅助
// ============================================================================

// SubscribedHandles 返回已解析的订阅属性句柄集合
func (oc *ObjectClass) SubscribedHandles() types.AttributeHandleSet {
	set := make(types.AttributeHandleSet)
	for _, f := range oc.fields {
		if !f.Sharing().Subscribes() {
			continue
		}
		if h, ok := f.AttributeHandle(); ok {
			set[h] = struct{}{}
		}
	}
	return set
}

// PublishedAttributes 返回带发布意图的属性
func (oc *ObjectClass) PublishedAttributes() []*Field {
	var out []*Field
	for _, f := range oc.fields {
		if f.Sharing().Publishes() {
			out = append(out, f)
		}
	}
	return out
}

// MissingRequired 返回 values 中缺失的必需订阅属性名
func (oc *ObjectClass) MissingRequired(values types.AttributeValueMap) []string {
	var missing []string
	for _, f := range oc.fields {
		if !f.Required() || !f.Sharing().Subscribes() {
			continue
		}
		h, ok := f.AttributeHandle()
		if !ok {
			missing = append(missing, f.Name())
			continue
		}
		if _, ok := values[h]; !ok {
			missing = append(missing, f.Name())
		}
	}
	return missing
}
