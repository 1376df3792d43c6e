package config

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-federate/pkg/types"
)

// 执行配置对象（SpaceFOM）默认类名与实例名
const (
	DefaultAnchorClass    = "HLAobjectRoot.ExecutionConfiguration"
	DefaultAnchorInstance = "ExCO"
	DefaultModeTransition = "HLAinteractionRoot.ModeTransitionRequest"
)

// FederationConfig 联邦配置
type FederationConfig struct {
	// Name 联邦执行名
	Name string `json:"name" yaml:"name"`

	// FederateName 本成员名，为空时自动生成
	FederateName string `json:"federate_name" yaml:"federate_name"`

	// FederateType 本成员类型
	FederateType string `json:"federate_type" yaml:"federate_type"`

	// FOMModules 创建联邦时使用的 FOM 模块
	FOMModules []string `json:"fom_modules,omitempty" yaml:"fom_modules,omitempty"`

	// AnchorClass 锚对象类名；为空时跳过锚对象相关阶段
	// 默认值: HLAobjectRoot.ExecutionConfiguration
	AnchorClass string `json:"anchor_class" yaml:"anchor_class"`

	// AnchorInstance 锚对象实例名
	// 默认值: ExCO
	AnchorInstance string `json:"anchor_instance" yaml:"anchor_instance"`

	// ModeTransitionClass 模式转换请求交互类名；为空时不发布
	ModeTransitionClass string `json:"mode_transition_class" yaml:"mode_transition_class"`

	// RequiredObjects 进入时间同步前必须发现的远端实例名
	RequiredObjects []string `json:"required_objects,omitempty" yaml:"required_objects,omitempty"`

	// ResignAction 退出时对本成员实例的处理: "none" / "delete-objects"
	// 默认值: "delete-objects"
	ResignAction string `json:"resign_action" yaml:"resign_action"`
}

// DefaultFederationConfig 返回默认联邦配置
func DefaultFederationConfig() FederationConfig {
	return FederationConfig{
		Name:                "SpaceFederation",
		FederateType:        "go-federate",
		AnchorClass:         DefaultAnchorClass,
		AnchorInstance:      DefaultAnchorInstance,
		ModeTransitionClass: DefaultModeTransition,
		ResignAction:        "delete-objects",
	}
}

// HasAnchor 是否配置了锚对象
func (c *FederationConfig) HasAnchor() bool {
	return c.AnchorClass != ""
}

// Resign 返回退出动作
func (c *FederationConfig) Resign() types.ResignAction {
	if c.ResignAction == "none" {
		return types.ResignNoAction
	}
	return types.ResignDeleteObjects
}

// Validate 验证联邦配置
func (c *FederationConfig) Validate() error {
	if c.Name == "" {
		return errors.New("federation: name cannot be empty")
	}
	if c.HasAnchor() && c.AnchorInstance == "" {
		return errors.New("federation: anchor_instance required when anchor_class is set")
	}
	switch c.ResignAction {
	case "", "none", "delete-objects":
	default:
		return fmt.Errorf("federation: unknown resign_action %q", c.ResignAction)
	}
	seen := make(map[string]struct{}, len(c.RequiredObjects))
	for _, name := range c.RequiredObjects {
		if name == "" {
			return errors.New("federation: required object name cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("federation: duplicate required object %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
