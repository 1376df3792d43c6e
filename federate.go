package federate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/dispatch"
	"github.com/dep2p/go-federate/internal/core/execution"
	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/internal/core/instance"
	"github.com/dep2p/go-federate/internal/core/introspect"
	"github.com/dep2p/go-federate/internal/core/lifecycle"
	"github.com/dep2p/go-federate/internal/core/timing"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/log"
	"github.com/dep2p/go-federate/pkg/types"
)

var logger = log.Logger("federate")

// stopTimeout Fx App 停止超时
const stopTimeout = 10 * time.Second

// ════════════════════════════════════════════════════════════════════════════
//                              联邦成员
// ════════════════════════════════════════════════════════════════════════════

// Federate 联邦成员
//
// Federate 是用户与联邦执行交互的主入口，聚合了所有内部组件：
//   - 回调分发器：RTI 回调线程的唯一入口
//   - 时间协调器：时间受限/调节与逐步推进
//   - 实例管理器：本地实例的预留、注册、更新与删除
//   - 执行配置跟踪器：锚对象的 LCTS 与执行模式
//
// 使用示例：
//
//	fed, err := federate.New(
//	    federate.WithRTI(rti),
//	    federate.WithConfigFile("federate.yaml"),
//	    federate.WithSetup(registerLander),
//	)
//	if err != nil {
//	    return err
//	}
//	defer fed.Close()
//
//	if err := fed.Start(ctx); err != nil {
//	    return err
//	}
//	return fed.Run(ctx)
type Federate struct {
	// ────────────────────────────────────────────────────────────────────────
	// 配置
	// ────────────────────────────────────────────────────────────────────────

	cfg   *config.Config
	app   *fx.App
	setup []SetupFunc
	name  string

	// ────────────────────────────────────────────────────────────────────────
	// 核心组件（由 Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	fc         *fedctx.Context
	instances  *instance.Manager
	timing     *timing.Coordinator
	tracker    *execution.Tracker
	dispatcher *dispatch.Dispatcher
	bus        interfaces.EventBus
	introspect *introspect.Server

	// ────────────────────────────────────────────────────────────────────────
	// 生命周期状态
	// ────────────────────────────────────────────────────────────────────────

	mu      sync.Mutex
	started bool
	closed  bool

	running      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// New 创建联邦成员
//
// 只装配组件，不连接 RTI。类声明与转换器在此处校验，
// 未登记的转换器或原型会让 New 直接失败。
func New(opts ...Option) (*Federate, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if o.rti == nil {
		return nil, errors.New("RTI ambassador is required (use WithRTI)")
	}

	cfg, err := o.resolveConfig()
	if err != nil {
		return nil, err
	}
	if o.logOutput != nil {
		log.Configure(o.logOutput, cfg.Log.Level, cfg.Log.Format)
	}
	reg, err := buildRegistry(cfg, o)
	if err != nil {
		return nil, err
	}

	f := &Federate{cfg: cfg, setup: o.setup}
	f.app = buildFxApp(cfg, o, reg, f)
	if err := f.app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("validate class bindings: %w", err)
	}

	logger.Info("联邦成员已创建",
		"federation", cfg.Federation.Name,
		"anchor", cfg.Federation.AnchorClass,
		"objectClasses", len(reg.ObjectClasses()),
		"interactionClasses", len(reg.InteractionClasses()))
	return f, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              启动
// ════════════════════════════════════════════════════════════════════════════

// Start 执行启动序列，返回时已推进到第一个时间边界
//
// 连接之后的任何失败都是致命错误（types.IsFatal）；调用方应调用 Close
// 退出联邦并断开连接，随后终止进程。
func (f *Federate) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return types.ErrClosed
	}
	if f.started {
		f.mu.Unlock()
		return types.ErrAlreadyStarted
	}
	f.started = true
	f.mu.Unlock()

	if err := f.app.Start(ctx); err != nil {
		return fmt.Errorf("start fx app: %w", err)
	}

	steps := []func(context.Context) error{
		f.connect,
		f.declareAnchor,
		f.declareClasses,
		f.awaitRequiredObjects,
		f.synchronizeTime,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			logger.Error("启动失败", "phase", f.fc.Lifecycle.Phase().String(), "error", err)
			return err
		}
	}

	logger.Info("联邦成员已启动",
		"federate", f.name,
		"present", f.timing.Present(),
		"lookahead", f.timing.Lookahead())
	return nil
}

// advance 推进生命周期阶段
func (f *Federate) advance(p lifecycle.Phase) {
	if err := f.fc.Lifecycle.AdvanceTo(p); err != nil {
		logger.Warn("生命周期阶段推进失败", "target", p.String(), "error", err)
	}
}

// connect 连接 RTI，创建（已存在时忽略）并加入联邦执行
func (f *Federate) connect(ctx context.Context) error {
	rti := f.fc.Ambassador()
	conn := f.cfg.Connection

	cctx := ctx
	if conn.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, conn.Timeout.Duration())
		defer cancel()
	}
	if err := rti.Connect(cctx, f.dispatcher, conn.Host, conn.Port); err != nil {
		return types.Fatal(fmt.Errorf("connect %s:%d: %w", conn.Host, conn.Port, err))
	}
	f.fc.SetConnected(true)

	fed := f.cfg.Federation
	if err := rti.CreateFederationExecution(fed.Name, fed.FOMModules); err != nil {
		if !errors.Is(err, types.ErrFederationExists) {
			return types.Fatal(fmt.Errorf("create federation %q: %w", fed.Name, err))
		}
		logger.Debug("联邦执行已存在，直接加入", "federation", fed.Name)
	}

	name := fed.FederateName
	if name == "" {
		name = instance.GenerateName(fed.FederateType)
	}
	handle, err := rti.JoinFederationExecution(name, fed.FederateType, fed.Name)
	if err != nil {
		return types.Fatal(fmt.Errorf("join federation %q as %q: %w", fed.Name, name, err))
	}
	f.name = name

	logger.Info("已加入联邦执行", "federation", fed.Name, "federate", name, "handle", handle)
	f.advance(lifecycle.PhaseConnected)
	return nil
}

// declareAnchor 订阅锚对象类，等待锚对象被发现并收到首次完整更新，
// 随后发布模式转换请求交互
func (f *Federate) declareAnchor(ctx context.Context) error {
	fed := f.cfg.Federation
	if !fed.HasAnchor() {
		return nil
	}
	rti := f.fc.RTI()

	oc, ok := f.fc.Registry.ObjectClass(fed.AnchorClass)
	if !ok {
		return types.Fatal(fmt.Errorf("%w: anchor class %s", types.ErrUnknownClass, fed.AnchorClass))
	}
	if err := oc.Subscribe(rti); err != nil {
		return types.Fatal(fmt.Errorf("subscribe anchor class: %w", err))
	}
	f.advance(lifecycle.PhaseAnchorDeclared)

	f.advance(lifecycle.PhaseAwaitingAnchorDiscovery)
	if err := f.dispatcher.AwaitDiscovery(ctx, fed.AnchorInstance); err != nil {
		return types.Fatal(fmt.Errorf("await anchor %q: %w", fed.AnchorInstance, err))
	}

	f.advance(lifecycle.PhaseAwaitingAnchorValues)
	if err := f.dispatcher.AwaitValues(ctx, fed.AnchorInstance); err != nil {
		return types.Fatal(fmt.Errorf("await anchor %q values: %w", fed.AnchorInstance, err))
	}

	if fed.ModeTransitionClass != "" {
		ic, ok := f.fc.Registry.InteractionClass(fed.ModeTransitionClass)
		if !ok {
			return types.Fatal(fmt.Errorf("%w: %s", types.ErrUnknownClass, fed.ModeTransitionClass))
		}
		if err := ic.Publish(rti); err != nil {
			return types.Fatal(fmt.Errorf("publish mode transition: %w", err))
		}
	}
	logger.Info("执行配置已就绪", "anchor", fed.AnchorInstance, "mode", f.tracker.CurrentMode().String())
	return nil
}

// declareClasses 发布所有类，执行启动钩子注册本地实例，再订阅所有类
func (f *Federate) declareClasses(ctx context.Context) error {
	if err := f.fc.Registry.PublishAll(f.fc.RTI()); err != nil {
		return types.Fatal(fmt.Errorf("publish classes: %w", err))
	}
	f.advance(lifecycle.PhaseClassesDeclared)

	for i, fn := range f.setup {
		if err := fn(ctx, f); err != nil {
			return types.Fatal(fmt.Errorf("setup hook %d: %w", i, err))
		}
	}
	f.advance(lifecycle.PhaseInstancesRegistered)

	if err := f.fc.Registry.SubscribeAll(f.fc.RTI()); err != nil {
		return types.Fatal(fmt.Errorf("subscribe classes: %w", err))
	}
	f.advance(lifecycle.PhaseSubscriptionsActive)
	return nil
}

// awaitRequiredObjects 等待所有必需的远端实例被发现并收到首次完整更新
func (f *Federate) awaitRequiredObjects(ctx context.Context) error {
	names := f.cfg.Federation.RequiredObjects
	if len(names) == 0 {
		return nil
	}
	f.advance(lifecycle.PhaseAwaitingRequiredObjects)
	logger.Info("等待必需对象", "objects", names)
	if err := f.dispatcher.AwaitObjects(ctx, names); err != nil {
		return types.Fatal(fmt.Errorf("await required objects: %w", err))
	}
	return nil
}

// synchronizeTime 启用时间受限与时间调节，并推进到第一个时间边界
func (f *Federate) synchronizeTime(ctx context.Context) error {
	var lcts types.LogicalTimeInterval
	if f.cfg.Federation.HasAnchor() {
		v, err := f.timing.Configure(f.tracker)
		if err != nil {
			return err
		}
		lcts = v
	} else {
		lcts = types.LogicalTimeInterval(f.cfg.Time.LCTS)
		if err := f.timing.SetLookahead(lcts); err != nil {
			return err
		}
	}

	if f.cfg.Time.Constrained {
		if err := f.timing.EnableTimeConstrained(ctx); err != nil {
			return types.Fatal(fmt.Errorf("enable time constrained: %w", err))
		}
	}
	if f.cfg.Time.Regulating {
		if err := f.timing.EnableTimeRegulation(ctx, lcts); err != nil {
			return types.Fatal(fmt.Errorf("enable time regulation: %w", err))
		}
	}
	if _, err := f.timing.AdvanceToBoundary(ctx); err != nil {
		return types.Fatal(fmt.Errorf("advance to boundary: %w", err))
	}
	f.advance(lifecycle.PhaseTimeSynchronized)
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              主循环
// ════════════════════════════════════════════════════════════════════════════

// Run 运行仿真主循环，直到收到关闭信号，随后退出联邦并断开连接
//
// 每一步依次执行 World.Update、（可选）推送本地实例的发布属性、推进一个 LCTS。
// 循环在以下任一条件下结束：显式 Shutdown、锚对象被移除、执行模式进入
// SHUTDOWN、达到 MaxSteps、ctx 结束。ctx 结束导致的等待中断不视为错误。
func (f *Federate) Run(ctx context.Context) error {
	if !f.fc.Lifecycle.Reached(lifecycle.PhaseTimeSynchronized) {
		return types.ErrNotStarted
	}
	if f.fc.Lifecycle.Reached(lifecycle.PhaseShuttingDown) {
		return types.ErrClosed
	}
	if !f.running.CompareAndSwap(false, true) {
		return errors.New("run loop already active")
	}
	f.advance(lifecycle.PhaseRunning)

	var (
		runErr error
		steps  uint64
	)
	for {
		if reason, stop := f.shouldStop(ctx); stop {
			logger.Info("主循环结束", "reason", reason, "steps", steps, "present", f.timing.Present())
			break
		}
		if err := f.step(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, types.ErrGateInterrupted) {
				logger.Info("主循环被取消", "steps", steps, "present", f.timing.Present())
			} else {
				logger.Error("仿真步失败", "step", steps, "error", err)
				runErr = err
			}
			break
		}
		steps++
		if limit := f.cfg.Run.MaxSteps; limit > 0 && steps >= limit {
			logger.Info("达到最大步数", "steps", steps, "present", f.timing.Present())
			break
		}
	}
	f.running.Store(false)

	return multierr.Combine(runErr, f.shutdown())
}

// step 执行一个仿真步
func (f *Federate) step(ctx context.Context) error {
	if err := f.fc.WithWorld(func(w interfaces.World) error {
		return w.Update(ctx)
	}); err != nil {
		return fmt.Errorf("world update: %w", err)
	}

	if f.cfg.Run.AutoUpdate {
		if err := f.instances.UpdateAll(nil); err != nil {
			if types.IsFatal(err) {
				return err
			}
			logger.Warn("推送本地实例失败", "error", err)
		}
	}

	_, err := f.timing.Advance(ctx)
	return err
}

// shouldStop 检查主循环的结束条件
func (f *Federate) shouldStop(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "context done", true
	}
	lc := f.fc.Lifecycle
	if lc.ShutdownRequested() {
		return lc.ShutdownReason(), true
	}
	if f.tracker.ShuttingDown() {
		lc.RequestShutdown("execution mode shutdown")
		return "execution mode shutdown", true
	}
	return "", false
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

// Shutdown 请求退出联邦
//
// 主循环运行时只设置关闭标志，由 Run 在当前步结束后退出；
// 否则立即退出联邦并断开连接。退出只执行一次。
func (f *Federate) Shutdown() error {
	f.mu.Lock()
	started := f.started
	f.mu.Unlock()
	if !started {
		return types.ErrNotStarted
	}

	f.fc.Lifecycle.RequestShutdown("shutdown requested")
	if f.running.Load() {
		return nil
	}
	return f.shutdown()
}

// shutdown 退出联邦执行并断开连接（只执行一次）
func (f *Federate) shutdown() error {
	f.shutdownOnce.Do(func() {
		if !f.fc.Connected() {
			return
		}
		f.advance(lifecycle.PhaseShuttingDown)
		f.dispatcher.ExpectAnchorRemoval()

		rti := f.fc.Ambassador()
		var errs error
		if err := rti.ResignFederationExecution(f.cfg.Federation.Resign()); err != nil {
			logger.Error("退出联邦执行失败", "error", err)
			errs = multierr.Append(errs, fmt.Errorf("resign: %w", err))
		}
		if err := rti.Disconnect(); err != nil {
			logger.Error("断开 RTI 失败", "error", err)
			errs = multierr.Append(errs, fmt.Errorf("disconnect: %w", err))
		}
		f.fc.SetConnected(false)
		f.advance(lifecycle.PhaseTerminated)

		f.shutdownErr = errs
		logger.Info("已退出联邦执行", "federate", f.name, "present", f.timing.Present())
	})
	return f.shutdownErr
}

// Close 退出联邦（如仍连接）并停止所有组件；重复调用无副作用
//
// Close 不得与 Run 并发调用；结束主循环请使用 Shutdown 或取消 ctx。
func (f *Federate) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	started := f.started
	f.mu.Unlock()

	var errs error
	if f.fc.Connected() {
		errs = multierr.Append(errs, f.shutdown())
	}
	if started {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := f.app.Stop(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stop fx app: %w", err))
		}
	}
	return errs
}
