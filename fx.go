package federate

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/dispatch"
	"github.com/dep2p/go-federate/internal/core/eventbus"
	"github.com/dep2p/go-federate/internal/core/execution"
	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/internal/core/instance"
	"github.com/dep2p/go-federate/internal/core/introspect"
	"github.com/dep2p/go-federate/internal/core/lifecycle"
	"github.com/dep2p/go-federate/internal/core/metrics"
	"github.com/dep2p/go-federate/internal/core/registry"
	"github.com/dep2p/go-federate/internal/core/timing"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/ecs"
	"github.com/dep2p/go-federate/pkg/types"
)

// buildRegistry 按选项与配置构建类注册表
func buildRegistry(cfg *config.Config, o *options) (*registry.Registry, error) {
	reg := registry.New()
	for name, f := range o.converters {
		reg.RegisterConverter(name, f)
	}
	for name, f := range o.multiConverters {
		reg.RegisterMultiConverter(name, f)
	}
	for name, a := range o.archetypes {
		reg.RegisterArchetype(name, a)
	}

	objects := append(append([]types.ObjectClassSpec(nil), cfg.ObjectClasses...), o.objectClasses...)
	interactions := append(append([]types.InteractionClassSpec(nil), cfg.InteractionClasses...), o.interactionClasses...)
	if err := reg.LoadSpecs(objects, interactions); err != nil {
		return nil, fmt.Errorf("load class specs: %w", err)
	}
	return reg, nil
}

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置与外部依赖：Config, RTI, World, Registry, Clock, Registerer
//  2. 基础组件：Lifecycle → Metrics → EventBus
//  3. 联邦上下文：Gate + Context
//  4. 功能组件：Instance → Timing → Execution → Dispatch
//  5. 诊断：Introspect（按配置启用）
func buildFxApp(cfg *config.Config, o *options, reg *registry.Registry, f *Federate) *fx.App {
	world := o.world
	if world == nil {
		world = ecs.NewMemoryWorld()
	}

	modules := []fx.Option{
		fx.Supply(cfg),
		fx.Supply(reg),
		fx.Provide(func() interfaces.RTIAmbassador { return o.rti }),
		fx.Provide(func() interfaces.World { return world }),
	}
	if o.clock != nil {
		modules = append(modules, fx.Provide(func() clock.Clock { return o.clock }))
	}
	if o.registerer != nil {
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return o.registerer }))
	}

	modules = append(modules,
		lifecycle.Module(),
		metrics.Module(),
		eventbus.Module(),
		fedctx.Module(),
		instance.Module(),
		timing.Module(),
		execution.Module(),
		dispatch.Module(),
		introspect.Module(),
	)
	modules = append(modules, o.fxOptions...)

	modules = append(modules,
		fx.Populate(&f.fc, &f.instances, &f.timing, &f.tracker, &f.dispatcher, &f.bus, &f.introspect),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)
	return fx.New(modules...)
}
