// Package config 提供联邦成员的统一配置
//
// 本包采用与各子系统一一对应的配置结构：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，提供 DefaultXxxConfig 与 Validate
//   - 支持从 JSON / YAML 加载（LoadFile 按扩展名选择）
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Federation.Name = "SpaceFederation"
//	cfg.Federation.FederateName = "Lander"
//
//	// 从文件加载
//	cfg, err := config.LoadFile("federate.yaml")
package config

import (
	"errors"

	"github.com/dep2p/go-federate/pkg/types"
)

// Config 联邦成员完整配置
//
// 配置按功能模块组织：
//   - Connection: RTI 连接参数（透传给 RTIAmbassador）
//   - Federation: 联邦执行、锚对象与必需对象
//   - Time: 时间受限/调节
//   - Gate: 会合闸门等待超时
//   - Dispatch: 回调分发策略
//   - Metrics: Prometheus 指标
//   - Introspect: 本地自省 HTTP 服务
//   - Run: 仿真主循环
//   - Log: 日志
//   - ObjectClasses / InteractionClasses: 类声明
type Config struct {
	// Connection RTI 连接配置
	Connection ConnectionConfig `json:"connection" yaml:"connection"`

	// Federation 联邦配置
	Federation FederationConfig `json:"federation" yaml:"federation"`

	// Time 时间管理配置
	Time TimeConfig `json:"time" yaml:"time"`

	// Gate 闸门配置
	Gate GateConfig `json:"gate" yaml:"gate"`

	// Dispatch 回调分发配置
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Introspect 自省服务配置
	Introspect IntrospectConfig `json:"introspect" yaml:"introspect"`

	// Run 主循环配置
	Run RunConfig `json:"run" yaml:"run"`

	// Log 日志配置
	Log LogConfig `json:"log" yaml:"log"`

	// ObjectClasses 对象类声明
	ObjectClasses []types.ObjectClassSpec `json:"object_classes,omitempty" yaml:"object_classes,omitempty"`

	// InteractionClasses 交互类声明
	InteractionClasses []types.InteractionClassSpec `json:"interaction_classes,omitempty" yaml:"interaction_classes,omitempty"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Connection: DefaultConnectionConfig(),
		Federation: DefaultFederationConfig(),
		Time:       DefaultTimeConfig(),
		Gate:       DefaultGateConfig(),
		Dispatch:   DefaultDispatchConfig(),
		Metrics:    DefaultMetricsConfig(),
		Introspect: DefaultIntrospectConfig(),
		Run:        DefaultRunConfig(),
		Log:        DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性，返回所有子配置的错误
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	errs := []error{
		c.Connection.Validate(),
		c.Federation.Validate(),
		c.Time.Validate(),
		c.Gate.Validate(),
		c.Dispatch.Validate(),
		c.Introspect.Validate(),
		c.Run.Validate(),
		c.Log.Validate(),
	}
	if !c.Federation.HasAnchor() && c.Time.LCTS <= 0 {
		errs = append(errs, errors.New("time: lcts must be positive when no anchor class is configured"))
	}
	for i := range c.ObjectClasses {
		errs = append(errs, c.ObjectClasses[i].Validate())
	}
	for i := range c.InteractionClasses {
		errs = append(errs, c.InteractionClasses[i].Validate())
	}
	return errors.Join(errs...)
}
