// Package timing 实现联邦时间推进协议
//
// 所有时间服务请求（启用受限、启用调节、时间推进）都是异步的：
// 驱动线程在闸门上发出请求并等待，回调线程收到对应的完成回调后
// 更新当前逻辑时间并释放闸门。同一时刻最多只有一个时间请求未完成。
package timing

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/log"
	"github.com/dep2p/go-federate/pkg/types"
)

var logger = log.Logger("core/timing")

// Authority 时间权威（例如执行配置对象）
type Authority interface {
	// Ready 是否已收到首次完整更新
	Ready() bool
	// LeastCommonTimeStep 最小公共时间步长（微秒）
	LeastCommonTimeStep() types.LogicalTimeInterval
}

// request 未完成的时间请求类型
type request int

const (
	requestNone request = iota
	requestConstrained
	requestRegulation
	requestAdvance
)

func (r request) String() string {
	switch r {
	case requestConstrained:
		return "time-constrained"
	case requestRegulation:
		return "time-regulation"
	case requestAdvance:
		return "time-advance"
	default:
		return "none"
	}
}

// Coordinator 时间协调器
type Coordinator struct {
	fc *fedctx.Context

	mu          sync.Mutex
	present     types.LogicalTime
	lookahead   types.LogicalTimeInterval
	constrained bool
	regulating  bool
	pending     request
	requested   types.LogicalTime
}

// NewCoordinator 创建时间协调器
func NewCoordinator(fc *fedctx.Context) *Coordinator {
	return &Coordinator{fc: fc}
}

// ============================================================================
//                              状态查询
// ============================================================================

// Present 当前逻辑时间
func (c *Coordinator) Present() types.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.present
}

// Lookahead 当前前瞻量（= LCTS）
func (c *Coordinator) Lookahead() types.LogicalTimeInterval {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookahead
}

// Constrained 是否已启用时间受限
func (c *Coordinator) Constrained() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.constrained
}

// Regulating 是否已启用时间调节
func (c *Coordinator) Regulating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regulating
}

// ============================================================================
//                              配置
// ============================================================================

// Configure 从时间权威读取 LCTS
//
// 权威尚未就绪时返回致命的 types.ErrOrderingViolation。
func (c *Coordinator) Configure(auth Authority) (types.LogicalTimeInterval, error) {
	if auth == nil || !auth.Ready() {
		return 0, types.Fatal(fmt.Errorf("%w: time authority read before its first update", types.ErrOrderingViolation))
	}
	lcts := auth.LeastCommonTimeStep()
	if err := c.SetLookahead(lcts); err != nil {
		return 0, err
	}
	return lcts, nil
}

// SetLookahead 直接设置前瞻量
func (c *Coordinator) SetLookahead(lcts types.LogicalTimeInterval) error {
	if lcts <= 0 {
		return types.Fatal(fmt.Errorf("%w: least common time step must be positive, got %d", types.ErrOrderingViolation, lcts))
	}
	c.mu.Lock()
	c.lookahead = lcts
	c.mu.Unlock()
	logger.Info("时间步长已配置", "lcts", lcts)
	return nil
}

// ============================================================================
//                              请求（驱动线程）
// ============================================================================

// EnableTimeConstrained 启用时间受限并等待确认
func (c *Coordinator) EnableTimeConstrained(ctx context.Context) error {
	return c.request(ctx, requestConstrained, 0, func(rti interfaces.RTIAmbassador) error {
		return rti.EnableTimeConstrained()
	})
}

// EnableTimeRegulation 以 lcts 为前瞻量启用时间调节并等待确认
func (c *Coordinator) EnableTimeRegulation(ctx context.Context, lcts types.LogicalTimeInterval) error {
	if err := c.SetLookahead(lcts); err != nil {
		return err
	}
	return c.request(ctx, requestRegulation, 0, func(rti interfaces.RTIAmbassador) error {
		return rti.EnableTimeRegulation(lcts)
	})
}

// AdvanceToBoundary 推进到严格大于 GALT 的最小 LCTS 整数倍
//
// GALT 无效（联邦中没有时间调节成员）时以当前逻辑时间为基准。
func (c *Coordinator) AdvanceToBoundary(ctx context.Context) (types.LogicalTime, error) {
	rti := c.fc.RTI()
	if rti == nil {
		return 0, types.Fatal(types.ErrNotConnected)
	}
	lcts, present, err := c.stepState()
	if err != nil {
		return 0, err
	}

	galt, valid, err := rti.QueryGALT()
	if err != nil {
		return 0, types.Fatal(fmt.Errorf("query GALT: %w", err))
	}
	base := galt
	if !valid || galt < present {
		logger.Debug("GALT 不可用，以当前时间为基准", "galt", galt, "valid", valid, "present", present)
		base = present
	}
	target := types.LogicalTimeBoundary(base, lcts)

	logger.Info("推进到时间边界", "galt", galt, "lcts", lcts, "target", target)
	return target, c.advanceTo(ctx, target)
}

// Advance 推进一个 LCTS
func (c *Coordinator) Advance(ctx context.Context) (types.LogicalTime, error) {
	lcts, present, err := c.stepState()
	if err != nil {
		return 0, err
	}
	target := types.NextTimeStep(present, lcts)
	return target, c.advanceTo(ctx, target)
}

func (c *Coordinator) stepState() (types.LogicalTimeInterval, types.LogicalTime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookahead <= 0 {
		return 0, 0, types.Fatal(fmt.Errorf("%w: time step not configured", types.ErrOrderingViolation))
	}
	return c.lookahead, c.present, nil
}

func (c *Coordinator) advanceTo(ctx context.Context, target types.LogicalTime) error {
	return c.request(ctx, requestAdvance, target, func(rti interfaces.RTIAmbassador) error {
		return rti.TimeAdvanceRequest(target)
	})
}

// request 发出一个时间请求并在闸门上等待其完成回调
func (c *Coordinator) request(ctx context.Context, kind request, target types.LogicalTime, issue func(interfaces.RTIAmbassador) error) error {
	rti := c.fc.RTI()
	if rti == nil {
		return types.Fatal(types.ErrNotConnected)
	}

	c.mu.Lock()
	if c.pending != requestNone {
		pending := c.pending
		c.mu.Unlock()
		return fmt.Errorf("%w: %s pending, requested %s", types.ErrTimeRequestOutstanding, pending, kind)
	}
	c.pending = kind
	c.requested = target
	c.mu.Unlock()

	err := c.fc.Gate.Arm(ctx, kind.String(), func() error {
		if err := issue(rti); err != nil {
			logger.Error("时间请求失败", "request", kind.String(), "error", err)
			return types.Fatal(fmt.Errorf("%s: %w", kind, err))
		}
		return nil
	})

	c.mu.Lock()
	if c.pending == kind {
		c.pending = requestNone
	}
	c.mu.Unlock()
	return err
}

// ============================================================================
//                              回调（回调线程）
// ============================================================================

// complete 完成匹配的请求并释放闸门
func (c *Coordinator) complete(kind request, t types.LogicalTime, apply func()) {
	c.mu.Lock()
	if c.pending != kind {
		pending := c.pending
		c.mu.Unlock()
		logger.Warn("收到未预期的时间回调", "callback", kind.String(), "pending", pending.String(), "time", t)
		return
	}
	apply()
	c.pending = requestNone
	c.mu.Unlock()

	c.fc.Gate.Release()
}

// OnTimeConstrainedEnabled 时间受限已启用
func (c *Coordinator) OnTimeConstrainedEnabled(t types.LogicalTime) {
	c.complete(requestConstrained, t, func() {
		c.constrained = true
		c.present = t
	})
	logger.Info("时间受限已启用", "time", t)
}

// OnTimeRegulationEnabled 时间调节已启用
func (c *Coordinator) OnTimeRegulationEnabled(t types.LogicalTime) {
	c.complete(requestRegulation, t, func() {
		c.regulating = true
		c.present = t
	})
	logger.Info("时间调节已启用", "time", t)
}

// OnTimeAdvanceGrant 时间推进许可
func (c *Coordinator) OnTimeAdvanceGrant(t types.LogicalTime) {
	c.complete(requestAdvance, t, func() {
		if t != c.requested {
			logger.Warn("许可时间与请求不一致", "requested", c.requested, "granted", t)
		}
		c.present = t
	})
	c.fc.Metrics.Grant()
	c.fc.Metrics.LogicalTime(c.Present())
	logger.Debug("时间推进许可", "time", t)
}
