// Package lifecycle 提供联邦成员生命周期协调器
//
// 阶段定义（只能向前推进）：
//
//	Disconnected → Connected → AnchorDeclared → AwaitingAnchorDiscovery →
//	AwaitingAnchorValues → ClassesDeclared → InstancesRegistered →
//	SubscriptionsActive → AwaitingRequiredObjects → TimeSynchronized →
//	Running → ShuttingDown → Terminated
//
// 本模块的核心职责：
//  1. 追踪当前阶段并提供阶段信号（WaitFor）
//  2. 汇总关闭请求（锚对象被移除、执行模式 SHUTDOWN、显式 Shutdown）
//  3. 通知阶段变更观察者
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-federate/pkg/lib/log"
)

var logger = log.Logger("core/lifecycle")

// ============================================================================
//                              阶段定义
// ============================================================================

// Phase 生命周期阶段
type Phase int

const (
	// PhaseDisconnected 未连接 RTI
	PhaseDisconnected Phase = iota

	// ═══════════════════════════ 启动 ═══════════════════════════

	// PhaseConnected 已连接并加入联邦执行
	PhaseConnected

	// PhaseAnchorDeclared 已订阅锚对象类
	PhaseAnchorDeclared

	// PhaseAwaitingAnchorDiscovery 等待发现锚对象实例
	PhaseAwaitingAnchorDiscovery

	// PhaseAwaitingAnchorValues 等待锚对象的首次完整更新
	PhaseAwaitingAnchorValues

	// PhaseClassesDeclared 所有发布已声明
	PhaseClassesDeclared

	// PhaseInstancesRegistered 本地实例已注册
	PhaseInstancesRegistered

	// PhaseSubscriptionsActive 所有订阅已声明
	PhaseSubscriptionsActive

	// PhaseAwaitingRequiredObjects 等待必需的远端对象
	PhaseAwaitingRequiredObjects

	// PhaseTimeSynchronized 时间受限/调节已启用，并推进到时间边界
	PhaseTimeSynchronized

	// ═══════════════════════════ 运行 ═══════════════════════════

	// PhaseRunning 主循环运行中
	PhaseRunning

	// ═══════════════════════════ 关闭 ═══════════════════════════

	// PhaseShuttingDown 正在退出联邦
	PhaseShuttingDown

	// PhaseTerminated 已退出并断开
	PhaseTerminated
)

var phaseNames = [...]string{
	PhaseDisconnected:            "disconnected",
	PhaseConnected:               "connected",
	PhaseAnchorDeclared:          "anchor_declared",
	PhaseAwaitingAnchorDiscovery: "awaiting_anchor_discovery",
	PhaseAwaitingAnchorValues:    "awaiting_anchor_values",
	PhaseClassesDeclared:         "classes_declared",
	PhaseInstancesRegistered:     "instances_registered",
	PhaseSubscriptionsActive:     "subscriptions_active",
	PhaseAwaitingRequiredObjects: "awaiting_required_objects",
	PhaseTimeSynchronized:        "time_synchronized",
	PhaseRunning:                 "running",
	PhaseShuttingDown:            "shutting_down",
	PhaseTerminated:              "terminated",
}

// String 返回阶段字符串表示
func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// ============================================================================
//                              生命周期协调器
// ============================================================================

// Coordinator 生命周期协调器
type Coordinator struct {
	mu sync.RWMutex

	// 当前阶段
	phase Phase

	// 阶段完成信号：已关闭的 channel 表示该阶段已到达
	phaseSignals map[Phase]chan struct{}

	// 关闭请求信号
	shutdownChan   chan struct{}
	shutdownReason string

	// 阶段变更回调
	onPhaseChange []func(old, new Phase)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator 创建生命周期协调器
func NewCoordinator() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		phase:        PhaseDisconnected,
		phaseSignals: make(map[Phase]chan struct{}),
		shutdownChan: make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	for p := PhaseDisconnected; p <= PhaseTerminated; p++ {
		c.phaseSignals[p] = make(chan struct{})
	}
	close(c.phaseSignals[PhaseDisconnected])
	return c
}

// ============================================================================
//                              阶段管理
// ============================================================================

// Phase 返回当前阶段
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// AdvanceTo 推进到指定阶段
//
// 规则：
//   - 只能向前推进，不能后退
//   - 会自动完成中间所有阶段的信号
func (c *Coordinator) AdvanceTo(target Phase) error {
	c.mu.Lock()

	if target < c.phase {
		c.mu.Unlock()
		return fmt.Errorf("cannot advance backwards: current=%s target=%s", c.phase, target)
	}
	if target == c.phase {
		c.mu.Unlock()
		return nil
	}
	if _, ok := c.phaseSignals[target]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("invalid phase: %d", target)
	}

	old := c.phase
	for p := c.phase; p <= target; p++ {
		ch := c.phaseSignals[p]
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
	c.phase = target

	callbacks := make([]func(old, new Phase), len(c.onPhaseChange))
	copy(callbacks, c.onPhaseChange)
	c.mu.Unlock()

	logger.Info("生命周期阶段推进", "from", old.String(), "to", target.String())

	// 回调在释放锁后按注册顺序同步调用，观察者不得阻塞
	for _, cb := range callbacks {
		cb(old, target)
	}
	return nil
}

// WaitFor 等待指定阶段到达
func (c *Coordinator) WaitFor(ctx context.Context, phase Phase) error {
	c.mu.RLock()
	ch := c.phaseSignals[phase]
	c.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("invalid phase: %d", phase)
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Reached 指定阶段是否已到达
func (c *Coordinator) Reached(phase Phase) bool {
	c.mu.RLock()
	ch := c.phaseSignals[phase]
	c.mu.RUnlock()

	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// ============================================================================
//                              关闭请求
// ============================================================================

// RequestShutdown 请求关闭；只有第一次请求生效，返回是否为第一次
func (c *Coordinator) RequestShutdown(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.shutdownChan:
		return false
	default:
	}
	c.shutdownReason = reason
	close(c.shutdownChan)

	logger.Info("收到关闭请求", "reason", reason, "phase", c.phase.String())
	return true
}

// ShutdownRequested 是否已请求关闭
func (c *Coordinator) ShutdownRequested() bool {
	select {
	case <-c.shutdownChan:
		return true
	default:
		return false
	}
}

// ShutdownReason 返回关闭原因
func (c *Coordinator) ShutdownReason() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shutdownReason
}

// ShutdownChan 返回关闭请求信号 channel
func (c *Coordinator) ShutdownChan() <-chan struct{} {
	return c.shutdownChan
}

// ============================================================================
//                              回调管理
// ============================================================================

// OnPhaseChange 注册阶段变更回调
func (c *Coordinator) OnPhaseChange(callback func(old, new Phase)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPhaseChange = append(c.onPhaseChange, callback)
}

// ============================================================================
//                              生命周期控制
// ============================================================================

// Stop 停止协调器，解除所有 WaitFor 阻塞
func (c *Coordinator) Stop() {
	c.cancel()
}
