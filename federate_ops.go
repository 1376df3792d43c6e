package federate

import (
	"context"
	"errors"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/dispatch"
	"github.com/dep2p/go-federate/internal/core/execution"
	"github.com/dep2p/go-federate/internal/core/lifecycle"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

// ExecutionMode 联邦执行模式
type ExecutionMode = execution.Mode

// 执行模式
const (
	ModeUninitialized = execution.ModeUninitialized
	ModeInitializing  = execution.ModeInitializing
	ModeRunning       = execution.ModeRunning
	ModeFreeze        = execution.ModeFreeze
	ModeShutdown      = execution.ModeShutdown
)

// InteractionHandler 交互处理函数
//
// 在回调线程上、持有 World 锁时调用，不得阻塞，也不得调用本成员的
// 更新或发送操作。
type InteractionHandler = dispatch.InteractionHandler

// ════════════════════════════════════════════════════════════════════════════
//                              访问器
// ════════════════════════════════════════════════════════════════════════════

// Config 返回生效的配置
func (f *Federate) Config() *config.Config {
	return f.cfg
}

// FederateName 返回加入联邦时使用的成员名；加入之前为空
func (f *Federate) FederateName() string {
	return f.name
}

// EventBus 返回事件总线
func (f *Federate) EventBus() interfaces.EventBus {
	return f.bus
}

// World 返回实体引擎
//
// 与回调线程并发访问时应使用 WithWorld。
func (f *Federate) World() interfaces.World {
	return f.fc.World
}

// WithWorld 在持有 World 锁时执行 fn
func (f *Federate) WithWorld(fn func(w interfaces.World) error) error {
	return f.fc.WithWorld(fn)
}

// Phase 返回当前生命周期阶段
func (f *Federate) Phase() string {
	return f.fc.Lifecycle.Phase().String()
}

// Present 返回当前已获准的逻辑时间
func (f *Federate) Present() types.LogicalTime {
	return f.timing.Present()
}

// Lookahead 返回时间步长
func (f *Federate) Lookahead() types.LogicalTimeInterval {
	return f.timing.Lookahead()
}

// Mode 返回执行配置中的当前执行模式；未配置锚对象时为 ModeUninitialized
func (f *Federate) Mode() ExecutionMode {
	return f.tracker.CurrentMode()
}

// IntrospectAddr 返回自省服务的实际监听地址；未启用时返回空串
func (f *Federate) IntrospectAddr() string {
	if f.introspect == nil {
		return ""
	}
	return f.introspect.Addr()
}

// Instance 按实例名查找实体
func (f *Federate) Instance(name string) (types.EntityID, bool) {
	e, ok := f.instances.Mapping().ByName(name)
	return e.Entity, ok
}

// ════════════════════════════════════════════════════════════════════════════
//                              本地实例
// ════════════════════════════════════════════════════════════════════════════

// RegisterInstance 预留名字并注册本地实例
//
// name 为空时自动生成。对象类必须已发布，因此通常在 WithSetup 钩子中调用。
func (f *Federate) RegisterInstance(ctx context.Context, className string, id types.EntityID, name string) (types.ObjectInstanceHandle, error) {
	return f.instances.Register(ctx, className, id, name)
}

// UpdateInstance 推送本地实例的所有发布属性
func (f *Federate) UpdateInstance(id types.EntityID, tag []byte) error {
	return f.instances.Update(id, tag)
}

// UpdateAll 推送所有本地实例
func (f *Federate) UpdateAll(tag []byte) error {
	return f.instances.UpdateAll(tag)
}

// DeleteInstance 删除本地实例；实体保留在 World 中
func (f *Federate) DeleteInstance(id types.EntityID, tag []byte) error {
	return f.instances.Delete(id, tag)
}

// ════════════════════════════════════════════════════════════════════════════
//                              交互
// ════════════════════════════════════════════════════════════════════════════

// SendInteraction 编码实体上的参数并发送交互
func (f *Federate) SendInteraction(className string, id types.EntityID, tag []byte) error {
	return f.instances.Send(className, id, tag)
}

// SendInteractionWith 用交互类原型创建临时实体，由 fill 填充后发送
func (f *Federate) SendInteractionWith(className string, fill func(w interfaces.World, id types.EntityID) error, tag []byte) error {
	return f.instances.SendWith(className, fill, tag)
}

// OnInteraction 注册交互处理函数
func (f *Federate) OnInteraction(className string, fn InteractionHandler) {
	f.dispatcher.HandleInteraction(className, fn)
}

// RequestModeTransition 请求联邦切换执行模式
func (f *Federate) RequestModeTransition(mode ExecutionMode) error {
	class := f.cfg.Federation.ModeTransitionClass
	if !f.cfg.Federation.HasAnchor() || class == "" {
		return errors.New("mode transition class not configured")
	}
	return execution.RequestModeTransition(f.instances, class, mode)
}

// ════════════════════════════════════════════════════════════════════════════
//                              观察者
// ════════════════════════════════════════════════════════════════════════════

// OnPhaseChange 注册生命周期阶段变更回调
//
// 回调在推进阶段的线程上同步调用，不得阻塞。
func (f *Federate) OnPhaseChange(fn func(from, to string)) {
	f.fc.Lifecycle.OnPhaseChange(func(old, new lifecycle.Phase) {
		fn(old.String(), new.String())
	})
}
