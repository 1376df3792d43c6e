// Package fedctx 定义联邦成员上下文
//
// 上下文显式持有一个联邦成员运行所需的全部共享组件，
// 由 fx 注入到分发器、时间协调器、实例管理器等组件中。
// 同一进程内可以存在多个互不干扰的联邦成员。
package fedctx

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/gate"
	"github.com/dep2p/go-federate/internal/core/lifecycle"
	"github.com/dep2p/go-federate/internal/core/metrics"
	"github.com/dep2p/go-federate/internal/core/registry"
	"github.com/dep2p/go-federate/pkg/interfaces"
)

// Context 联邦成员上下文
type Context struct {
	Config    *config.Config
	World     interfaces.World
	Registry  *registry.Registry
	Gate      *gate.Gate
	Lifecycle *lifecycle.Coordinator
	Bus       interfaces.EventBus
	Metrics   *metrics.Metrics
	Clock     clock.Clock

	// worldMu 串行化回调线程与驱动线程对 World 的修改
	worldMu sync.Mutex

	rti       interfaces.RTIAmbassador
	connected atomic.Bool
}

// New 创建上下文
func New(cfg *config.Config, rti interfaces.RTIAmbassador, w interfaces.World, reg *registry.Registry,
	g *gate.Gate, lc *lifecycle.Coordinator, bus interfaces.EventBus, m *metrics.Metrics, clk clock.Clock) *Context {
	if clk == nil {
		clk = clock.New()
	}
	return &Context{
		Config:    cfg,
		World:     w,
		Registry:  reg,
		Gate:      g,
		Lifecycle: lc,
		Bus:       bus,
		Metrics:   m,
		Clock:     clk,
		rti:       rti,
	}
}

// RTI 返回已连接的 RTI；未连接时返回 nil
//
// 声明、实例与时间操作在 nil 上统一返回致命的 types.ErrNotConnected。
func (c *Context) RTI() interfaces.RTIAmbassador {
	if !c.connected.Load() {
		return nil
	}
	return c.rti
}

// Ambassador 返回 RTI，不检查连接状态（仅用于 Connect/Disconnect）
func (c *Context) Ambassador() interfaces.RTIAmbassador {
	return c.rti
}

// SetConnected 设置连接状态
func (c *Context) SetConnected(v bool) {
	c.connected.Store(v)
}

// Connected 是否已连接
func (c *Context) Connected() bool {
	return c.connected.Load()
}

// LockWorld 获取 World 锁
func (c *Context) LockWorld() {
	c.worldMu.Lock()
}

// UnlockWorld 释放 World 锁
func (c *Context) UnlockWorld() {
	c.worldMu.Unlock()
}

// WithWorld 在持有 World 锁时执行 fn
func (c *Context) WithWorld(fn func(w interfaces.World) error) error {
	c.worldMu.Lock()
	defer c.worldMu.Unlock()
	return fn(c.World)
}
