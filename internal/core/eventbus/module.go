package eventbus

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-federate/internal/core/metrics"
	"github.com/dep2p/go-federate/pkg/interfaces"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Params Fx 模块输入参数
type Params struct {
	fx.In

	Metrics *metrics.Metrics `optional:"true"`
}

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	Bus      *Bus
	EventBus interfaces.EventBus
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideEventBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEventBus 提供 EventBus 实例
func ProvideEventBus(p Params) Result {
	var opts []Option
	if p.Metrics != nil {
		opts = append(opts, WithDropHook(p.Metrics.EventDropped))
	}
	b := NewBus(opts...)
	return Result{Bus: b, EventBus: b}
}

type lifecycleInput struct {
	fx.In

	LC  fx.Lifecycle
	Bus *Bus
}

// registerLifecycle 停止时关闭总线
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Bus.Close()
		},
	})
}
