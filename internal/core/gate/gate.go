// Package gate 实现 RTI 回调线程与驱动线程之间的会合闸门
//
// 驱动线程发出一个异步请求后在 Gate 上等待，RTI 回调线程收到对应的完成
// 回调后释放 Gate。同一时刻最多只有一个等待：
//
//	err := g.Arm(ctx, "time-advance", func() error {
//	    return rti.TimeAdvanceRequest(t) // 在 Armed 状态下发出请求
//	})
//
// prepare 在 Armed 之后执行，因此即使完成回调早于 Arm 返回到达也不会丢失。
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-federate/pkg/lib/log"
	"github.com/dep2p/go-federate/pkg/types"
)

var logger = log.Logger("core/gate")

// State 闸门状态
type State int

const (
	// StateIdle 空闲
	StateIdle State = iota
	// StateArmed 有一个等待者
	StateArmed
	// StateBroken 等待被中断后不可再用
	StateBroken
)

// String 返回状态字符串表示
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateBroken:
		return "broken"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Observer 等待完成回调（用于指标），waited 为实际阻塞时长
type Observer func(name string, waited time.Duration, err error)

// Gate 单槽会合闸门
type Gate struct {
	mu    sync.Mutex
	state State
	wake  chan struct{}
	cycle string

	clock    clock.Clock
	timeout  time.Duration
	observer Observer
}

// Option 闸门选项
type Option func(*Gate)

// WithClock 指定时钟（测试使用 clock.NewMock()）
func WithClock(c clock.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithTimeout 设置等待超时，0 表示无限等待
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

// WithObserver 设置等待观察者
func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// New 创建闸门
func New(opts ...Option) *Gate {
	g := &Gate{
		state: StateIdle,
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State 返回当前状态
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Arm 进入等待状态并阻塞直到 Release
//
// 流程：Idle→Armed，执行 prepare（可为 nil），然后等待唤醒。
//   - 已 Armed：记录错误并返回 ErrGateArmed，不覆盖已有等待
//   - prepare 返回错误：回到 Idle 并返回该错误
//   - prepare 返回 ErrAlreadySatisfied：回到 Idle，不等待，返回 nil
//   - ctx 取消或超时：闸门进入 Broken，返回致命错误
func (g *Gate) Arm(ctx context.Context, name string, prepare func() error) error {
	g.mu.Lock()
	switch g.state {
	case StateArmed:
		pending := g.cycle
		g.mu.Unlock()
		logger.Error("闸门已在等待，拒绝重复 arm", "pending", pending, "requested", name)
		return fmt.Errorf("%w: pending %q, requested %q", types.ErrGateArmed, pending, name)
	case StateBroken:
		g.mu.Unlock()
		return types.Fatal(fmt.Errorf("%w: arm %q", types.ErrGateBroken, name))
	}
	wake := make(chan struct{}, 1)
	g.state = StateArmed
	g.wake = wake
	g.cycle = name
	g.mu.Unlock()

	if prepare != nil {
		if err := prepare(); err != nil {
			g.disarm(wake)
			if errors.Is(err, types.ErrAlreadySatisfied) {
				logger.Debug("等待条件已满足，跳过等待", "cycle", name)
				return nil
			}
			return err
		}
	}

	start := g.clock.Now()
	err := g.wait(ctx, name, wake)
	if g.observer != nil {
		g.observer(name, g.clock.Since(start), err)
	}
	return err
}

func (g *Gate) wait(ctx context.Context, name string, wake chan struct{}) error {
	var timeoutC <-chan time.Time
	if g.timeout > 0 {
		timer := g.clock.Timer(g.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		g.breakGate(wake)
		logger.Error("闸门等待被中断", "cycle", name, "error", ctx.Err())
		return types.Fatal(fmt.Errorf("%w: %q: %v", types.ErrGateInterrupted, name, ctx.Err()))
	case <-timeoutC:
		g.breakGate(wake)
		logger.Error("闸门等待超时，联邦伙伴无响应", "cycle", name, "timeout", g.timeout)
		return types.Fatal(fmt.Errorf("%w: %q after %s", types.ErrGateStalled, name, g.timeout))
	}
}

// disarm 在 prepare 失败时回到 Idle；若期间已被释放则吞掉令牌
func (g *Gate) disarm(wake chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.wake == wake {
		g.state = StateIdle
		g.wake = nil
		g.cycle = ""
	}
}

func (g *Gate) breakGate(wake chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.wake == wake {
		g.state = StateBroken
		g.wake = nil
	}
}

// Release 唤醒当前等待者
//
// 仅在 Armed 时生效（Armed→Idle，恰好唤醒一个等待者），返回 true；
// Idle 时为带警告的空操作，返回 false。同一周期的重复释放会落在 Idle 上被合并。
func (g *Gate) Release() bool {
	g.mu.Lock()
	if g.state != StateArmed {
		state := g.state
		g.mu.Unlock()
		logger.Warn("闸门未在等待，忽略 release", "state", state.String())
		return false
	}
	wake := g.wake
	cycle := g.cycle
	g.state = StateIdle
	g.wake = nil
	g.cycle = ""
	g.mu.Unlock()

	wake <- struct{}{}
	logger.Debug("闸门已释放", "cycle", cycle)
	return true
}
