package config

import "fmt"

// ReflectPolicy 反射完整性策略
type ReflectPolicy string

const (
	// ReflectDiscardIncomplete 缺少任一必需订阅属性时丢弃整个更新
	ReflectDiscardIncomplete ReflectPolicy = "discard-incomplete"
	// ReflectApplyPartial 应用收到的属性子集
	ReflectApplyPartial ReflectPolicy = "apply-partial"
)

// DefaultWarnCacheSize 默认的未知句柄告警计数缓存容量
const DefaultWarnCacheSize = 1024

// DispatchConfig 回调分发配置
type DispatchConfig struct {
	// ReflectPolicy 反射完整性策略
	// 默认值: "discard-incomplete"
	ReflectPolicy ReflectPolicy `json:"reflect_policy" yaml:"reflect_policy"`

	// RetainInteractions 为 true 时交互实体不自动销毁，由观察者负责
	RetainInteractions bool `json:"retain_interactions" yaml:"retain_interactions"`

	// WarnCacheSize 未知句柄告警计数缓存容量
	// 默认值: 1024
	WarnCacheSize int `json:"warn_cache_size" yaml:"warn_cache_size"`
}

// DefaultDispatchConfig 返回默认分发配置
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		ReflectPolicy: ReflectDiscardIncomplete,
		WarnCacheSize: DefaultWarnCacheSize,
	}
}

// Validate 验证分发配置
func (c *DispatchConfig) Validate() error {
	switch c.ReflectPolicy {
	case ReflectDiscardIncomplete, ReflectApplyPartial:
	default:
		return fmt.Errorf("dispatch: unknown reflect_policy %q", c.ReflectPolicy)
	}
	if c.WarnCacheSize <= 0 {
		return fmt.Errorf("dispatch: warn_cache_size must be positive")
	}
	return nil
}
