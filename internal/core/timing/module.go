package timing

import "go.uber.org/fx"

// Module 返回 Fx 模块：提供时间协调器
func Module() fx.Option {
	return fx.Module("timing",
		fx.Provide(NewCoordinator),
	)
}
