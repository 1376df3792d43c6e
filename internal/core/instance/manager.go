package instance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/log"
	"github.com/dep2p/go-federate/pkg/types"
)

var logger = log.Logger("core/instance")

// reservation 进行中的名字预留
type reservation struct {
	name string
	done bool
	ok   bool
}

// Manager 本地实例操作
//
// 预留、注册、更新、删除和发送交互只由驱动线程调用；
// 预留结果与属性更新请求由回调线程通过 ReservationResult / ProvideUpdate 进入。
// Update / Send 会获取 World 锁，不得在 World 系统内部调用。
type Manager struct {
	fc      *fedctx.Context
	mapping *Mapping

	resMu   sync.Mutex
	pending *reservation
}

// NewManager 创建实例管理器
func NewManager(fc *fedctx.Context) *Manager {
	return &Manager{
		fc:      fc,
		mapping: NewMapping(fc.Metrics),
	}
}

// Mapping 返回实例映射
func (m *Manager) Mapping() *Mapping {
	return m.mapping
}

// ============================================================================
//                              名字预留
// ============================================================================

// ReserveName 预留实例名并等待 RTI 结果
func (m *Manager) ReserveName(ctx context.Context, name string) error {
	rti := m.fc.RTI()
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}

	// 记录只在 Arm 占用闸门后安装，被拒绝的调用不会覆盖正在等待的预留
	res := &reservation{name: name}
	err := m.fc.Gate.Arm(ctx, "reserve", func() error {
		m.resMu.Lock()
		m.pending = res
		m.resMu.Unlock()
		return rti.ReserveObjectInstanceName(name)
	})

	m.resMu.Lock()
	if m.pending == res {
		m.pending = nil
	}
	done, ok := res.done, res.ok
	m.resMu.Unlock()

	if err != nil {
		return err
	}
	if !done || !ok {
		logger.Warn("实例名预留失败", "name", name)
		return fmt.Errorf("%w: %q", types.ErrReservationFailed, name)
	}
	logger.Debug("实例名预留成功", "name", name)
	return nil
}

// ReservationResult 记录名字预留结果并释放闸门（回调线程）
func (m *Manager) ReservationResult(name string, ok bool) {
	m.resMu.Lock()
	res := m.pending
	if res == nil || res.name != name || res.done {
		m.resMu.Unlock()
		logger.Warn("收到未预期的名字预留结果", "name", name, "succeeded", ok)
		return
	}
	res.done = true
	res.ok = ok
	m.resMu.Unlock()

	m.fc.Gate.Release()
}

// ============================================================================
//                              注册 / 删除
// ============================================================================

// GenerateName 生成实例名：类名最后一段 + uuid
func GenerateName(className string) string {
	short := className
	if i := strings.LastIndexByte(short, '.'); i >= 0 {
		short = short[i+1:]
	}
	return short + "-" + uuid.NewString()
}

// Register 预留名字并注册本地实例
//
// name 为空时自动生成。对象类必须已发布。
func (m *Manager) Register(ctx context.Context, className string, id types.EntityID, name string) (types.ObjectInstanceHandle, error) {
	rti := m.fc.RTI()
	if rti == nil {
		return 0, types.Fatal(types.ErrNotConnected)
	}
	oc, ok := m.fc.Registry.ObjectClass(className)
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrUnknownClass, className)
	}
	if !oc.IsPublished() {
		return 0, fmt.Errorf("%w: %s", types.ErrNotPublished, className)
	}
	if !m.fc.World.Alive(id) {
		return 0, fmt.Errorf("%w: %s", types.ErrUnknownInstance, id)
	}
	if e, exists := m.mapping.ByEntity(id); exists {
		return 0, fmt.Errorf("%w: %s already registered as %q", types.ErrDuplicateInstance, id, e.Name)
	}
	if name == "" {
		name = GenerateName(className)
	}

	if err := m.ReserveName(ctx, name); err != nil {
		return 0, err
	}

	ch, err := oc.Handle(rti)
	if err != nil {
		return 0, err
	}
	h, err := rti.RegisterObjectInstance(ch, name)
	if err != nil {
		logger.Error("注册对象实例失败", "class", className, "name", name, "error", err)
		return 0, fmt.Errorf("register %q: %w", name, err)
	}

	if err := m.mapping.Put(Entry{Entity: id, Handle: h, Name: name, Class: className, Origin: types.OriginLocal}); err != nil {
		return 0, err
	}
	logger.Info("本地实例已注册", "class", className, "name", name, "handle", h)
	return h, nil
}

// Delete 删除本地实例；实体本身保留在 World 中
func (m *Manager) Delete(id types.EntityID, tag []byte) error {
	rti := m.fc.RTI()
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}
	e, err := m.local(id)
	if err != nil {
		return err
	}
	if err := rti.DeleteObjectInstance(e.Handle, tag); err != nil {
		logger.Error("删除对象实例失败", "name", e.Name, "error", err)
		return fmt.Errorf("delete %q: %w", e.Name, err)
	}
	m.mapping.Remove(e.Handle)
	logger.Info("本地实例已删除", "class", e.Class, "name", e.Name)
	return nil
}

func (m *Manager) local(id types.EntityID) (Entry, error) {
	e, ok := m.mapping.ByEntity(id)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", types.ErrUnknownInstance, id)
	}
	if e.Origin != types.OriginLocal {
		return Entry{}, fmt.Errorf("%w: %s (%q)", types.ErrRemoteEntity, id, e.Name)
	}
	return e, nil
}

// ============================================================================
//                              属性更新
// ============================================================================

// Update 编码并发送本地实例的所有发布属性
func (m *Manager) Update(id types.EntityID, tag []byte) error {
	rti := m.fc.RTI()
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}
	e, err := m.local(id)
	if err != nil {
		return err
	}
	values, err := m.encode(rti, e, nil)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if err := rti.UpdateAttributeValues(e.Handle, values, tag); err != nil {
		logger.Error("更新属性失败", "name", e.Name, "error", err)
		return fmt.Errorf("update %q: %w", e.Name, err)
	}
	return nil
}

// UpdateAll 更新所有本地实例，错误合并返回
func (m *Manager) UpdateAll(tag []byte) error {
	var errs []error
	for _, e := range m.mapping.Entries(types.OriginLocal) {
		if err := m.Update(e.Entity, tag); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProvideUpdate 响应属性更新请求（回调线程）
func (m *Manager) ProvideUpdate(h types.ObjectInstanceHandle, attrs types.AttributeHandleSet, tag []byte) {
	rti := m.fc.RTI()
	if rti == nil {
		return
	}
	e, ok := m.mapping.ByHandle(h)
	if !ok || e.Origin != types.OriginLocal {
		logger.Debug("忽略非本地实例的更新请求", "handle", h)
		return
	}
	values, err := m.encode(rti, e, attrs)
	if err != nil {
		logger.Warn("响应属性更新请求失败", "name", e.Name, "error", err)
		return
	}
	if len(values) == 0 {
		return
	}
	if err := rti.UpdateAttributeValues(h, values, tag); err != nil {
		logger.Warn("响应属性更新请求失败", "name", e.Name, "error", err)
	}
}

// encode 编码发布属性；only 非空时只编码其中的属性
func (m *Manager) encode(rti interfaces.RTIAmbassador, e Entry, only types.AttributeHandleSet) (types.AttributeValueMap, error) {
	oc, ok := m.fc.Registry.ObjectClass(e.Class)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownClass, e.Class)
	}

	fields := oc.PublishedAttributes()
	handles := make([]types.AttributeHandle, len(fields))
	for i, f := range fields {
		h, err := oc.AttributeHandle(rti, f.Name())
		if err != nil {
			return nil, err
		}
		handles[i] = h
	}

	values := make(types.AttributeValueMap, len(fields))
	err := m.fc.WithWorld(func(w interfaces.World) error {
		for i, f := range fields {
			if only != nil && !only.Contains(handles[i]) {
				continue
			}
			data, err := f.Encode(w, e.Entity)
			if err != nil {
				return fmt.Errorf("encode %s.%s: %w", e.Class, f.Name(), err)
			}
			values[handles[i]] = data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// ============================================================================
//                              交互
// ============================================================================

// Send 编码实体上的参数并发送交互
func (m *Manager) Send(className string, id types.EntityID, tag []byte) error {
	rti := m.fc.RTI()
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}
	ic, ok := m.fc.Registry.InteractionClass(className)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownClass, className)
	}
	if !ic.IsPublished() {
		return fmt.Errorf("%w: %s", types.ErrNotPublished, className)
	}
	if e, ok := m.mapping.ByEntity(id); ok && e.Origin == types.OriginRemote {
		return fmt.Errorf("%w: %s (%q)", types.ErrRemoteEntity, id, e.Name)
	}
	ch, ok := ic.ResolvedHandle()
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNotPublished, className)
	}

	params := make(types.ParameterValueMap)
	err := m.fc.WithWorld(func(w interfaces.World) error {
		for _, p := range ic.Parameters() {
			if !p.Sharing().Publishes() {
				continue
			}
			ph, ok := p.ParameterHandle()
			if !ok {
				return fmt.Errorf("%w: %s.%s unresolved", types.ErrUnknownField, className, p.Name())
			}
			data, err := p.Encode(w, id)
			if err != nil {
				return fmt.Errorf("encode %s.%s: %w", className, p.Name(), err)
			}
			params[ph] = data
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := rti.SendInteraction(ch, params, tag); err != nil {
		logger.Error("发送交互失败", "class", className, "error", err)
		return fmt.Errorf("send %s: %w", className, err)
	}
	return nil
}

// SendWith 用交互类原型创建临时实体，由 fill 填充后发送，随后销毁实体
func (m *Manager) SendWith(className string, fill func(w interfaces.World, id types.EntityID) error, tag []byte) error {
	ic, ok := m.fc.Registry.InteractionClass(className)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownClass, className)
	}
	create, err := ic.Archetype()
	if err != nil {
		return err
	}

	var id types.EntityID
	err = m.fc.WithWorld(func(w interfaces.World) error {
		var err error
		if id, err = create(w); err != nil {
			return err
		}
		if fill != nil {
			return fill(w, id)
		}
		return nil
	})
	defer func() {
		if id != types.NoEntity {
			_ = m.fc.WithWorld(func(w interfaces.World) error {
				w.DestroyEntity(id)
				return nil
			})
		}
	}()
	if err != nil {
		return err
	}
	return m.Send(className, id, tag)
}

// ============================================================================
//                              远端实例
// ============================================================================

// PutRemote 记录发现的远端实例
func (m *Manager) PutRemote(id types.EntityID, h types.ObjectInstanceHandle, name, className string) error {
	return m.mapping.Put(Entry{Entity: id, Handle: h, Name: name, Class: className, Origin: types.OriginRemote})
}
