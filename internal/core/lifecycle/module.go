package lifecycle

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/types"
)

// Module 返回 Fx 模块
//
// 提供生命周期协调器作为全局单例，阶段变更同时以 types.EvtPhaseChanged
// 发布到事件总线。
func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(NewCoordinator),
		fx.Invoke(registerLifecycleHooks),
	)
}

// lifecycleHooksParams 生命周期钩子参数
type lifecycleHooksParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Coordinator *Coordinator
	EventBus    interfaces.EventBus `optional:"true"`
}

// registerLifecycleHooks 注册生命周期钩子
func registerLifecycleHooks(params lifecycleHooksParams) error {
	var emitter interfaces.Emitter
	if params.EventBus != nil {
		em, err := params.EventBus.Emitter(new(types.EvtPhaseChanged), interfaces.Stateful())
		if err != nil {
			return err
		}
		emitter = em
		params.Coordinator.OnPhaseChange(func(old, new Phase) {
			_ = em.Emit(types.EvtPhaseChanged{From: old.String(), To: new.String()})
		})
	}

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			params.Coordinator.Stop()
			if emitter != nil {
				return emitter.Close()
			}
			return nil
		},
	})
	return nil
}
