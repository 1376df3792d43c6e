// Package dispatch 实现 RTI 回调分发
//
// Dispatcher 实现 interfaces.FederateAmbassador，在 RTI 回调线程上运行：
// 把发现、反射、移除与交互回调转换为 World 中的实体变化，
// 把预留与时间服务回调转交给等待中的驱动线程。
// 任何处理器都不会阻塞，也不会把错误或 panic 抛回 RTI。
package dispatch

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/execution"
	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/internal/core/gate"
	"github.com/dep2p/go-federate/internal/core/instance"
	"github.com/dep2p/go-federate/internal/core/registry"
	"github.com/dep2p/go-federate/internal/core/timing"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/log"
	"github.com/dep2p/go-federate/pkg/types"
)

var logger = log.Logger("core/dispatch")

// 丢弃原因（指标标签）
const (
	reasonUnknownClass    = "unknown_class"
	reasonUnknownInstance = "unknown_instance"
	reasonDuplicate       = "duplicate_instance"
	reasonIncomplete      = "incomplete"
	reasonArchetype       = "archetype"
	reasonLocal           = "local_instance"
	reasonPanic           = "panic"
)

// InteractionHandler 交互处理函数
//
// 在回调线程上、持有 World 锁时调用；id 为已解码参数的临时实体。
// 处理函数返回后，未开启保留时实体被销毁。
type InteractionHandler func(w interfaces.World, id types.EntityID, tag []byte)

// Dispatcher 回调分发器
type Dispatcher struct {
	fc        *fedctx.Context
	instances *instance.Manager
	timing    *timing.Coordinator
	tracker   *execution.Tracker

	policy config.ReflectPolicy
	retain bool
	unknown *lru.Cache[string, int]

	mu                  sync.Mutex
	anchorName          string
	anchorHandle        types.ObjectInstanceHandle
	anchorKnown         bool
	expectAnchorRemoval bool
	discovered          map[string]*gate.Latch
	valued              map[string]*gate.Latch
	received            map[types.ObjectInstanceHandle]types.AttributeValueMap
	complete            map[types.ObjectInstanceHandle]bool
	handlers            map[string][]InteractionHandler

	emitDiscovered  interfaces.Emitter
	emitReflected   interfaces.Emitter
	emitRemoved     interfaces.Emitter
	emitInteraction interfaces.Emitter
	emitShutdown    interfaces.Emitter
}

var _ interfaces.FederateAmbassador = (*Dispatcher)(nil)

// NewDispatcher 创建分发器；tracker 可为 nil（无锚对象的联邦）
func NewDispatcher(fc *fedctx.Context, instances *instance.Manager, tc *timing.Coordinator, tracker *execution.Tracker) (*Dispatcher, error) {
	size := fc.Config.Dispatch.WarnCacheSize
	if size <= 0 {
		size = config.DefaultWarnCacheSize
	}
	unknown, err := lru.New[string, int](size)
	if err != nil {
		return nil, fmt.Errorf("create unknown-handle cache: %w", err)
	}

	d := &Dispatcher{
		fc:         fc,
		instances:  instances,
		timing:     tc,
		tracker:    tracker,
		policy:     fc.Config.Dispatch.ReflectPolicy,
		retain:     fc.Config.Dispatch.RetainInteractions,
		unknown:    unknown,
		discovered: make(map[string]*gate.Latch),
		valued:     make(map[string]*gate.Latch),
		received:   make(map[types.ObjectInstanceHandle]types.AttributeValueMap),
		complete:   make(map[types.ObjectInstanceHandle]bool),
		handlers:   make(map[string][]InteractionHandler),
	}
	if fc.Config.Federation.HasAnchor() {
		d.anchorName = fc.Config.Federation.AnchorInstance
	}
	if err := d.initEmitters(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) initEmitters() error {
	if d.fc.Bus == nil {
		return nil
	}
	for _, e := range []struct {
		dst *interfaces.Emitter
		typ any
	}{
		{&d.emitDiscovered, new(types.EvtInstanceDiscovered)},
		{&d.emitReflected, new(types.EvtInstanceReflected)},
		{&d.emitRemoved, new(types.EvtInstanceRemoved)},
		{&d.emitInteraction, new(types.EvtInteractionReceived)},
		{&d.emitShutdown, new(types.EvtShutdownRequested)},
	} {
		em, err := d.fc.Bus.Emitter(e.typ)
		if err != nil {
			return fmt.Errorf("create emitter %T: %w", e.typ, err)
		}
		*e.dst = em
	}
	return nil
}

// Close 关闭事件发射器
func (d *Dispatcher) Close() error {
	for _, em := range []interfaces.Emitter{d.emitDiscovered, d.emitReflected, d.emitRemoved, d.emitInteraction, d.emitShutdown} {
		if em != nil {
			_ = em.Close()
		}
	}
	return nil
}

func emit(em interfaces.Emitter, evt any) {
	if em == nil {
		return
	}
	if err := em.Emit(evt); err != nil {
		logger.Debug("事件发射失败", "event", fmt.Sprintf("%T", evt), "error", err)
	}
}

// ============================================================================
//                              驱动线程接口
// ============================================================================

// HandleInteraction 注册某个交互类的处理函数
func (d *Dispatcher) HandleInteraction(className string, fn InteractionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[className] = append(d.handlers[className], fn)
}

// ExpectAnchorRemoval 声明锚对象的移除是预期的（本成员正在退出）
func (d *Dispatcher) ExpectAnchorRemoval() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expectAnchorRemoval = true
}

// Anchor 返回已发现的锚对象句柄
func (d *Dispatcher) Anchor() (types.ObjectInstanceHandle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.anchorHandle, d.anchorKnown
}

// AwaitDiscovery 等待指定名字的实例被发现
func (d *Dispatcher) AwaitDiscovery(ctx context.Context, name string) error {
	return d.latch(d.discovered, "discover", name).Await(ctx)
}

// AwaitValues 等待指定名字的实例收到首次完整更新
func (d *Dispatcher) AwaitValues(ctx context.Context, name string) error {
	return d.latch(d.valued, "values", name).Await(ctx)
}

// AwaitObjects 依次等待每个实例被发现并收到首次完整更新
func (d *Dispatcher) AwaitObjects(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := d.AwaitDiscovery(ctx, name); err != nil {
			return err
		}
		if err := d.AwaitValues(ctx, name); err != nil {
			return err
		}
		logger.Debug("必需对象已就绪", "name", name)
	}
	return nil
}

// latch 获取或创建名字对应的一次性条件
func (d *Dispatcher) latch(set map[string]*gate.Latch, kind, name string) *gate.Latch {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := set[name]
	if !ok {
		l = gate.NewLatch(d.fc.Gate, kind+":"+name)
		set[name] = l
	}
	return l
}

// ============================================================================
//                              辅助
// ============================================================================

// warnUnknown 每次都记录警告，附带该 key 的累计次数
//
// 计数保存在有界 LRU 中，长期不再出现的 key 会被淘汰并重新计数。
func (d *Dispatcher) warnUnknown(key, msg string, args ...any) {
	d.mu.Lock()
	n, _ := d.unknown.Get(key)
	n++
	d.unknown.Add(key, n)
	d.mu.Unlock()
	logger.Warn(msg, append(args, "occurrences", n)...)
}

// unknownCount 返回 key 的累计次数
func (d *Dispatcher) unknownCount(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, _ := d.unknown.Peek(key)
	return n
}

// guard 捕获处理器中的 panic
func (d *Dispatcher) guard(kind string) {
	if r := recover(); r != nil {
		logger.Error("回调处理 panic", "callback", kind, "panic", r)
		d.fc.Metrics.Discarded(reasonPanic)
	}
}

// decode 解码单个字段，转换器 panic 视为解码失败
func decode(f *registry.Field, w interfaces.World, id types.EntityID, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converter panic: %v", r)
		}
	}()
	return f.Decode(w, id, data)
}

func (d *Dispatcher) destroy(id types.EntityID) {
	_ = d.fc.WithWorld(func(w interfaces.World) error {
		w.DestroyEntity(id)
		return nil
	})
}

func (d *Dispatcher) requestShutdown(reason string) {
	if d.fc.Lifecycle.RequestShutdown(reason) {
		emit(d.emitShutdown, types.EvtShutdownRequested{Reason: reason})
	}
}

// ============================================================================
//                              对象管理回调
// ============================================================================

// DiscoverObjectInstance 发现远端实例
func (d *Dispatcher) DiscoverObjectInstance(h types.ObjectInstanceHandle, ch types.ObjectClassHandle, name string) {
	defer d.guard("discover")
	d.fc.Metrics.Callback("discover")

	oc, ok := d.fc.Registry.ObjectClassByHandle(ch)
	if !ok {
		d.warnUnknown(fmt.Sprintf("discover:class:%d", ch), "发现未知对象类的实例，忽略", "class", ch, "name", name)
		d.fc.Metrics.Discarded(reasonUnknownClass)
		return
	}
	if e, exists := d.instances.Mapping().ByHandle(h); exists {
		logger.Warn("重复发现实例，忽略", "name", name, "existing", e.Name, "handle", h)
		d.fc.Metrics.Discarded(reasonDuplicate)
		return
	}
	create, err := oc.Archetype()
	if err != nil {
		logger.Error("对象类缺少原型", "class", oc.Name(), "error", err)
		d.fc.Metrics.Discarded(reasonArchetype)
		return
	}

	var id types.EntityID
	err = d.fc.WithWorld(func(w interfaces.World) error {
		var err error
		id, err = create(w)
		return err
	})
	if err != nil {
		logger.Error("创建实体失败", "class", oc.Name(), "name", name, "error", err)
		d.fc.Metrics.Discarded(reasonArchetype)
		return
	}
	if err := d.instances.PutRemote(id, h, name, oc.Name()); err != nil {
		logger.Warn("记录远端实例失败", "name", name, "error", err)
		d.destroy(id)
		d.fc.Metrics.Discarded(reasonDuplicate)
		return
	}
	logger.Info("发现远端实例", "class", oc.Name(), "name", name, "handle", h)

	if rti := d.fc.RTI(); rti != nil {
		if attrs := oc.SubscribedHandles(); len(attrs) > 0 {
			if err := rti.RequestAttributeValueUpdate(h, attrs, nil); err != nil {
				logger.Warn("请求属性更新失败", "name", name, "error", err)
			}
		}
	}

	d.mu.Lock()
	isAnchor := d.anchorName != "" && name == d.anchorName
	if isAnchor {
		d.anchorHandle = h
		d.anchorKnown = true
	}
	d.mu.Unlock()
	if isAnchor && d.tracker != nil {
		d.tracker.Bind(id)
	}

	d.latch(d.discovered, "discover", name).Satisfy()
	emit(d.emitDiscovered, types.EvtInstanceDiscovered{Entity: id, Handle: h, Name: name, Class: oc.Name()})
}

// ReflectAttributeValues 应用远端属性更新
func (d *Dispatcher) ReflectAttributeValues(h types.ObjectInstanceHandle, values types.AttributeValueMap, tag []byte) {
	defer d.guard("reflect")
	d.fc.Metrics.Callback("reflect")

	e, ok := d.instances.Mapping().ByHandle(h)
	if !ok {
		d.warnUnknown(fmt.Sprintf("reflect:instance:%d", h), "收到未知实例的属性更新，丢弃", "handle", h)
		d.fc.Metrics.Discarded(reasonUnknownInstance)
		return
	}
	if e.Origin == types.OriginLocal {
		logger.Warn("收到本地实例的属性更新，丢弃", "name", e.Name)
		d.fc.Metrics.Discarded(reasonLocal)
		return
	}
	oc, ok := d.fc.Registry.ObjectClass(e.Class)
	if !ok {
		d.fc.Metrics.Discarded(reasonUnknownClass)
		return
	}

	if missing := oc.MissingRequired(values); len(missing) > 0 && d.policy != config.ReflectApplyPartial {
		logger.Debug("更新缺少必需属性，整体丢弃", "name", e.Name, "missing", missing)
		d.fc.Metrics.Discarded(reasonIncomplete)
		return
	}

	var (
		applied []string
		decoded []types.AttributeHandle
	)
	_ = d.fc.WithWorld(func(w interfaces.World) error {
		for ah, data := range values {
			f, ok := oc.AttributeByHandle(ah)
			if !ok || !f.Sharing().Subscribes() {
				logger.Debug("忽略未订阅的属性", "name", e.Name, "attribute", ah)
				continue
			}
			if err := decode(f, w, e.Entity, data); err != nil {
				logger.Warn("属性解码失败，保持原值", "name", e.Name, "attribute", f.Name(), "error", err)
				continue
			}
			applied = append(applied, f.Name())
			decoded = append(decoded, ah)
		}
		return nil
	})
	sort.Strings(applied)

	if d.markReceived(h, oc, decoded) {
		logger.Debug("实例收到首次完整更新", "name", e.Name)
		d.latch(d.valued, "values", e.Name).Satisfy()
	}
	emit(d.emitReflected, types.EvtInstanceReflected{Entity: e.Entity, Handle: h, Class: e.Class, Attributes: applied})
}

// markReceived 累计已成功解码的属性，首次覆盖全部必需属性时返回 true
func (d *Dispatcher) markReceived(h types.ObjectInstanceHandle, oc *registry.ObjectClass, decoded []types.AttributeHandle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.complete[h] {
		return false
	}
	seen := d.received[h]
	if seen == nil {
		seen = make(types.AttributeValueMap, len(decoded))
		d.received[h] = seen
	}
	for _, ah := range decoded {
		seen[ah] = nil
	}
	if len(oc.MissingRequired(seen)) > 0 {
		return false
	}
	d.complete[h] = true
	delete(d.received, h)
	return true
}

// RemoveObjectInstance 移除远端实例
func (d *Dispatcher) RemoveObjectInstance(h types.ObjectInstanceHandle, _ []byte) {
	defer d.guard("remove")
	d.fc.Metrics.Callback("remove")

	if e, ok := d.instances.Mapping().ByHandle(h); ok && e.Origin == types.OriginLocal {
		logger.Warn("收到本地实例的移除通知，忽略", "name", e.Name)
		d.fc.Metrics.Discarded(reasonLocal)
		return
	}
	e, ok := d.instances.Mapping().Remove(h)
	if !ok {
		d.warnUnknown(fmt.Sprintf("remove:instance:%d", h), "移除未知实例，忽略", "handle", h)
		d.fc.Metrics.Discarded(reasonUnknownInstance)
		return
	}
	d.destroy(e.Entity)

	d.mu.Lock()
	delete(d.discovered, e.Name)
	delete(d.valued, e.Name)
	delete(d.received, h)
	delete(d.complete, h)
	anchorLost := d.anchorKnown && d.anchorHandle == h
	if anchorLost {
		d.anchorKnown = false
	}
	expected := d.expectAnchorRemoval
	d.mu.Unlock()

	logger.Info("远端实例已移除", "class", e.Class, "name", e.Name)
	emit(d.emitRemoved, types.EvtInstanceRemoved{Entity: e.Entity, Handle: h, Name: e.Name, Class: e.Class})

	if anchorLost && !expected {
		logger.Warn("锚对象被移除，请求关闭", "name", e.Name)
		d.requestShutdown("anchor object removed")
	}
}

// ReceiveInteraction 接收交互
func (d *Dispatcher) ReceiveInteraction(ch types.InteractionClassHandle, params types.ParameterValueMap, tag []byte) {
	defer d.guard("interaction")
	d.fc.Metrics.Callback("interaction")

	ic, ok := d.fc.Registry.InteractionClassByHandle(ch)
	if !ok {
		d.warnUnknown(fmt.Sprintf("interaction:class:%d", ch), "收到未知交互类，忽略", "class", ch)
		d.fc.Metrics.Discarded(reasonUnknownClass)
		return
	}
	create, err := ic.Archetype()
	if err != nil {
		logger.Error("交互类缺少原型", "class", ic.Name(), "error", err)
		d.fc.Metrics.Discarded(reasonArchetype)
		return
	}

	d.mu.Lock()
	handlers := append([]InteractionHandler(nil), d.handlers[ic.Name()]...)
	d.mu.Unlock()

	var id types.EntityID
	err = d.fc.WithWorld(func(w interfaces.World) error {
		var err error
		if id, err = create(w); err != nil {
			return err
		}
		for ph, data := range params {
			f, ok := ic.ParameterByHandle(ph)
			if !ok {
				continue
			}
			if err := decode(f, w, id, data); err != nil {
				logger.Warn("参数解码失败", "class", ic.Name(), "parameter", f.Name(), "error", err)
			}
		}
		if ic.Name() == d.fc.Config.Federation.ModeTransitionClass {
			if mode, ok := execution.DecodeModeTransition(w, id); ok {
				logger.Info("收到模式切换请求", "mode", mode.String())
			}
		}
		for _, fn := range handlers {
			d.invoke(ic.Name(), fn, w, id, tag)
		}
		if !d.retain {
			w.DestroyEntity(id)
		}
		return nil
	})
	if err != nil {
		logger.Error("创建交互实体失败", "class", ic.Name(), "error", err)
		d.fc.Metrics.Discarded(reasonArchetype)
		return
	}
	evt := types.EvtInteractionReceived{Class: ic.Name(), Parameters: maps.Clone(params), Tag: tag}
	if d.retain {
		evt.Entity = id
	}
	emit(d.emitInteraction, evt)
}

func (d *Dispatcher) invoke(class string, fn InteractionHandler, w interfaces.World, id types.EntityID, tag []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("交互处理函数 panic", "class", class, "panic", r)
		}
	}()
	fn(w, id, tag)
}

// ProvideAttributeValueUpdate 响应属性更新请求
func (d *Dispatcher) ProvideAttributeValueUpdate(h types.ObjectInstanceHandle, attrs types.AttributeHandleSet, tag []byte) {
	defer d.guard("provide")
	d.fc.Metrics.Callback("provide")
	d.instances.ProvideUpdate(h, attrs, tag)
}

// ============================================================================
//                              预留与时间回调
// ============================================================================

// ObjectInstanceNameReservationSucceeded 名字预留成功
func (d *Dispatcher) ObjectInstanceNameReservationSucceeded(name string) {
	defer d.guard("reservation")
	d.fc.Metrics.Callback("reservation")
	d.instances.ReservationResult(name, true)
}

// ObjectInstanceNameReservationFailed 名字预留失败
func (d *Dispatcher) ObjectInstanceNameReservationFailed(name string) {
	defer d.guard("reservation")
	d.fc.Metrics.Callback("reservation")
	d.instances.ReservationResult(name, false)
}

// TimeConstrainedEnabled 时间受限已启用
func (d *Dispatcher) TimeConstrainedEnabled(t types.LogicalTime) {
	defer d.guard("time")
	d.fc.Metrics.Callback("time_constrained")
	d.timing.OnTimeConstrainedEnabled(t)
}

// TimeRegulationEnabled 时间调节已启用
func (d *Dispatcher) TimeRegulationEnabled(t types.LogicalTime) {
	defer d.guard("time")
	d.fc.Metrics.Callback("time_regulation")
	d.timing.OnTimeRegulationEnabled(t)
}

// TimeAdvanceGrant 时间推进许可
func (d *Dispatcher) TimeAdvanceGrant(t types.LogicalTime) {
	defer d.guard("time")
	d.fc.Metrics.Callback("time_grant")
	d.timing.OnTimeAdvanceGrant(t)
}
