package config

import (
	"errors"
	"time"
)

// ConnectionConfig RTI 连接配置
//
// 参数原样透传给 RTIAmbassador.Connect。
type ConnectionConfig struct {
	// Host RTI 主机
	// 默认值: "localhost"
	Host string `json:"host" yaml:"host"`

	// Port RTI 端口
	// 默认值: 8989
	Port int `json:"port" yaml:"port"`

	// Timeout 连接超时，0 表示不限
	// 默认值: 30s
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConnectionConfig 返回默认连接配置
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Host:    "localhost",
		Port:    8989,
		Timeout: Duration(30 * time.Second),
	}
}

// Validate 验证连接配置
func (c *ConnectionConfig) Validate() error {
	if c.Host == "" {
		return errors.New("connection: host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("connection: port must be in 1..65535")
	}
	if c.Timeout < 0 {
		return errors.New("connection: timeout cannot be negative")
	}
	return nil
}
