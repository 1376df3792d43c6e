package config

import "errors"

// TimeConfig 时间管理配置
type TimeConfig struct {
	// Constrained 启用时间受限
	// 默认值: true
	Constrained bool `json:"constrained" yaml:"constrained"`

	// Regulating 启用时间调节
	// 默认值: true
	Regulating bool `json:"regulating" yaml:"regulating"`

	// LCTS 未配置锚对象时使用的最小公共时间步长（微秒）
	// 配置了锚对象时以锚对象发布的值为准
	LCTS int64 `json:"lcts" yaml:"lcts"`
}

// DefaultTimeConfig 返回默认时间配置
func DefaultTimeConfig() TimeConfig {
	return TimeConfig{
		Constrained: true,
		Regulating:  true,
	}
}

// Validate 验证时间配置
func (c *TimeConfig) Validate() error {
	if c.LCTS < 0 {
		return errors.New("time: lcts cannot be negative")
	}
	return nil
}

// GateConfig 会合闸门配置
type GateConfig struct {
	// Timeout 单次等待超时，0 表示无限等待
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// DefaultGateConfig 返回默认闸门配置
func DefaultGateConfig() GateConfig {
	return GateConfig{}
}

// Validate 验证闸门配置
func (c *GateConfig) Validate() error {
	if c.Timeout < 0 {
		return errors.New("gate: timeout cannot be negative")
	}
	return nil
}
