package config

import (
	"errors"
	"fmt"
	"strings"
)

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否启用 Prometheus 指标
	// 默认值: true
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true}
}

// RunConfig 主循环配置
type RunConfig struct {
	// AutoUpdate 每步结束后自动推送所有本地实例的发布属性
	AutoUpdate bool `json:"auto_update" yaml:"auto_update"`

	// MaxSteps 最多执行的仿真步数，0 表示不限
	MaxSteps uint64 `json:"max_steps" yaml:"max_steps"`
}

// DefaultRunConfig 返回默认主循环配置
func DefaultRunConfig() RunConfig {
	return RunConfig{AutoUpdate: true}
}

// Validate 验证主循环配置
func (c *RunConfig) Validate() error {
	return nil
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别: debug / info / warn / error
	// 默认值: "info"
	Level string `json:"level" yaml:"level"`

	// Format 输出格式: text / json
	// 默认值: "text"
	Format string `json:"format" yaml:"format"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "text"}
}

// Validate 验证日志配置
func (c *LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return errors.New("log: format must be text or json")
	}
	return nil
}

// IntrospectConfig 本地自省 HTTP 服务配置
type IntrospectConfig struct {
	// Enabled 是否启动自省服务
	// 默认值: false
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Addr 监听地址，端口为 0 时随机分配
	// 默认值: "127.0.0.1:6060"
	Addr string `json:"addr" yaml:"addr"`
}

// DefaultIntrospectConfig 返回默认自省配置
func DefaultIntrospectConfig() IntrospectConfig {
	return IntrospectConfig{Addr: "127.0.0.1:6060"}
}

// Validate 验证自省配置
func (c *IntrospectConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return errors.New("introspect: addr is required when enabled")
	}
	return nil
}
