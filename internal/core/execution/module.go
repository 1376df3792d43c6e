package execution

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/registry"
)

// Module 返回 Fx 模块：登记执行配置类并提供跟踪器
func Module() fx.Option {
	return fx.Module("execution",
		fx.Provide(NewTracker),
		fx.Invoke(registerClasses),
	)
}

func registerClasses(cfg *config.Config, reg *registry.Registry) error {
	if !cfg.Federation.HasAnchor() {
		return nil
	}
	return Register(reg, cfg.Federation.AnchorClass, cfg.Federation.ModeTransitionClass)
}
