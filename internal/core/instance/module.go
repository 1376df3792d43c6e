package instance

import "go.uber.org/fx"

// Module 返回 Fx 模块：提供实例管理器
func Module() fx.Option {
	return fx.Module("instance",
		fx.Provide(NewManager),
	)
}
