package dispatch

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-federate/internal/core/execution"
	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/internal/core/instance"
	"github.com/dep2p/go-federate/internal/core/timing"
	"github.com/dep2p/go-federate/pkg/interfaces"
)

// Params 分发器依赖参数
type Params struct {
	fx.In

	Context   *fedctx.Context
	Instances *instance.Manager
	Timing    *timing.Coordinator
	Tracker   *execution.Tracker `optional:"true"`
}

// Result 分发器输出
type Result struct {
	fx.Out

	Dispatcher *Dispatcher
	Callbacks  interfaces.FederateAmbassador
}

// Module 返回 Fx 模块：提供回调分发器
func Module() fx.Option {
	return fx.Module("dispatch",
		fx.Provide(provide),
		fx.Invoke(registerLifecycle),
	)
}

func provide(p Params) (Result, error) {
	d, err := NewDispatcher(p.Context, p.Instances, p.Timing, p.Tracker)
	if err != nil {
		return Result{}, err
	}
	return Result{Dispatcher: d, Callbacks: d}, nil
}

func registerLifecycle(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return d.Close()
		},
	})
}
