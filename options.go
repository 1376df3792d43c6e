package federate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/types"
)

// Option 用户配置选项函数
type Option func(*options) error

// SetupFunc 启动钩子：类已发布后、订阅之前调用，用于注册本地实例
type SetupFunc func(ctx context.Context, f *Federate) error

// options 内部选项结构
type options struct {
	config     *config.Config
	configFile string

	rti   interfaces.RTIAmbassador
	world interfaces.World
	clock clock.Clock

	registerer prometheus.Registerer
	logOutput  io.Writer

	objectClasses      []types.ObjectClassSpec
	interactionClasses []types.InteractionClassSpec
	converters         map[string]interfaces.ConverterFactory
	multiConverters    map[string]interfaces.MultiConverterFactory
	archetypes         map[string]interfaces.Archetype

	requiredObjects []string
	setup           []SetupFunc
	fxOptions       []fx.Option

	// 对配置的直接覆盖，在加载配置之后应用
	overrides []func(*config.Config)
}

func newOptions() *options {
	return &options{
		converters:      make(map[string]interfaces.ConverterFactory),
		multiConverters: make(map[string]interfaces.MultiConverterFactory),
		archetypes:      make(map[string]interfaces.Archetype),
	}
}

// resolveConfig 合并配置来源：文件或显式配置，随后应用覆盖
func (o *options) resolveConfig() (*config.Config, error) {
	cfg := o.config
	if o.configFile != "" {
		if cfg != nil {
			return nil, errors.New("WithConfig and WithConfigFile are mutually exclusive")
		}
		loaded, err := config.LoadFile(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	for _, fn := range o.overrides {
		fn(cfg)
	}
	cfg.Federation.RequiredObjects = append(cfg.Federation.RequiredObjects, o.requiredObjects...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用给定配置
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON/YAML 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configFile = path
		return nil
	}
}

// WithFederation 设置联邦执行名与本成员名
func WithFederation(federation, federateName string) Option {
	return func(o *options) error {
		o.overrides = append(o.overrides, func(c *config.Config) {
			c.Federation.Name = federation
			c.Federation.FederateName = federateName
		})
		return nil
	}
}

// WithoutAnchor 不等待执行配置对象，使用固定的时间步长（微秒）
func WithoutAnchor(lcts int64) Option {
	return func(o *options) error {
		o.overrides = append(o.overrides, func(c *config.Config) {
			c.Federation.AnchorClass = ""
			c.Federation.ModeTransitionClass = ""
			c.Time.LCTS = lcts
		})
		return nil
	}
}

// WithRequiredObjects 进入时间同步前必须发现的远端实例
func WithRequiredObjects(names ...string) Option {
	return func(o *options) error {
		o.requiredObjects = append(o.requiredObjects, names...)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              运行时依赖
// ════════════════════════════════════════════════════════════════════════════

// WithRTI 设置 RTI 大使（必需）
func WithRTI(rti interfaces.RTIAmbassador) Option {
	return func(o *options) error {
		if rti == nil {
			return errors.New("rti is nil")
		}
		o.rti = rti
		return nil
	}
}

// WithWorld 设置实体引擎；默认使用 ecs.MemoryWorld
func WithWorld(w interfaces.World) Option {
	return func(o *options) error {
		if w == nil {
			return errors.New("world is nil")
		}
		o.world = w
		return nil
	}
}

// WithClock 设置时钟（测试中使用 clock.NewMock）
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithPrometheusRegisterer 设置指标注册器；默认使用 prometheus.DefaultRegisterer
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithLogOutput 按配置中的日志级别与格式把进程默认日志输出到 w
//
// 未设置时不修改进程的默认 logger。
func WithLogOutput(w io.Writer) Option {
	return func(o *options) error {
		if w == nil {
			return errors.New("log output is nil")
		}
		o.logOutput = w
		return nil
	}
}

// WithFxOption 追加自定义 Fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              类与转换器
// ════════════════════════════════════════════════════════════════════════════

// WithObjectClass 声明对象类
func WithObjectClass(spec types.ObjectClassSpec) Option {
	return func(o *options) error {
		o.objectClasses = append(o.objectClasses, spec)
		return nil
	}
}

// WithInteractionClass 声明交互类
func WithInteractionClass(spec types.InteractionClassSpec) Option {
	return func(o *options) error {
		o.interactionClasses = append(o.interactionClasses, spec)
		return nil
	}
}

// WithConverter 登记单字段转换器工厂
func WithConverter(name string, f interfaces.ConverterFactory) Option {
	return func(o *options) error {
		if name == "" || f == nil {
			return errors.New("converter name and factory are required")
		}
		o.converters[name] = f
		return nil
	}
}

// WithMultiConverter 登记多字段转换器工厂
func WithMultiConverter(name string, f interfaces.MultiConverterFactory) Option {
	return func(o *options) error {
		if name == "" || f == nil {
			return errors.New("multi converter name and factory are required")
		}
		o.multiConverters[name] = f
		return nil
	}
}

// WithArchetype 登记原型工厂
func WithArchetype(name string, a interfaces.Archetype) Option {
	return func(o *options) error {
		if name == "" || a == nil {
			return errors.New("archetype name and factory are required")
		}
		o.archetypes[name] = a
		return nil
	}
}

// WithSetup 追加启动钩子
func WithSetup(fn SetupFunc) Option {
	return func(o *options) error {
		o.setup = append(o.setup, fn)
		return nil
	}
}
