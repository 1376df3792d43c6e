package introspect

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-federate/internal/core/execution"
	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/internal/core/instance"
	"github.com/dep2p/go-federate/internal/core/timing"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	Context    *fedctx.Context
	Instances  *instance.Manager
	Timing     *timing.Coordinator
	Tracker    *execution.Tracker    `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Server *Server
}

// ProvideServer 提供自省服务；未启用时提供 nil
func ProvideServer(in ModuleInput) ModuleOutput {
	cfg := in.Context.Config.Introspect
	if !cfg.Enabled {
		return ModuleOutput{}
	}
	return ModuleOutput{
		Server: New(Config{
			Addr:      cfg.Addr,
			Context:   in.Context,
			Instances: in.Instances,
			Timing:    in.Timing,
			Tracker:   in.Tracker,
			Gatherer:  gathererFor(in.Registerer),
		}),
	}
}

// gathererFor 指标注册器同时可采集时使用它，否则使用默认采集器
func gathererFor(reg prometheus.Registerer) prometheus.Gatherer {
	if g, ok := reg.(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.DefaultGatherer
}

// Module 返回 introspect fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(ProvideServer),
		fx.Invoke(func(lc fx.Lifecycle, s *Server) {
			if s == nil {
				return
			}
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return s.Start(ctx)
				},
				OnStop: func(ctx context.Context) error {
					return s.Stop(ctx)
				},
			})
		}),
	)
}
