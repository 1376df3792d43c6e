package fedctx

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/gate"
	"github.com/dep2p/go-federate/internal/core/lifecycle"
	"github.com/dep2p/go-federate/internal/core/metrics"
	"github.com/dep2p/go-federate/internal/core/registry"
	"github.com/dep2p/go-federate/pkg/interfaces"
)

// Params 上下文依赖参数
type Params struct {
	fx.In

	Config    *config.Config
	RTI       interfaces.RTIAmbassador
	World     interfaces.World
	Registry  *registry.Registry
	Lifecycle *lifecycle.Coordinator
	Bus       interfaces.EventBus
	Metrics   *metrics.Metrics `optional:"true"`
	Clock     clock.Clock      `optional:"true"`
}

// Module 返回 Fx 模块：提供闸门与上下文
func Module() fx.Option {
	return fx.Module("fedctx",
		fx.Provide(
			provideGate,
			provideContext,
		),
	)
}

type gateParams struct {
	fx.In

	Config  *config.Config
	Metrics *metrics.Metrics `optional:"true"`
	Clock   clock.Clock      `optional:"true"`
}

func provideGate(p gateParams) *gate.Gate {
	opts := []gate.Option{gate.WithTimeout(time.Duration(p.Config.Gate.Timeout))}
	if p.Clock != nil {
		opts = append(opts, gate.WithClock(p.Clock))
	}
	if p.Metrics != nil {
		opts = append(opts, gate.WithObserver(p.Metrics.ObserveGate))
	}
	return gate.New(opts...)
}

func provideContext(p Params, g *gate.Gate) *Context {
	return New(p.Config, p.RTI, p.World, p.Registry, g, p.Lifecycle, p.Bus, p.Metrics, p.Clock)
}
