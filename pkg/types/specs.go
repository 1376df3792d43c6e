package types

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              声明规格
// ============================================================================

// ConverterRef 转换器绑定
//
// Multi 为 true 时表示共享的多字段转换器，Trigger 区分该实例服务的具体字段。
type ConverterRef struct {
	Name    string `json:"name" yaml:"name"`
	Multi   bool   `json:"multi,omitempty" yaml:"multi,omitempty"`
	Trigger int    `json:"trigger,omitempty" yaml:"trigger,omitempty"`
}

// FieldSpec 属性或参数规格
type FieldSpec struct {
	// Name 属性/参数名（FOM 中的名字）
	Name string `json:"name" yaml:"name"`

	// Sharing 共享意图
	Sharing Sharing `json:"sharing" yaml:"sharing"`

	// Converter 转换器绑定
	Converter ConverterRef `json:"converter" yaml:"converter"`

	// Required 反射时必须出现的属性
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
}

// ObjectClassSpec 对象类规格
type ObjectClassSpec struct {
	// Name 完整类名，例如 "HLAobjectRoot.ExecutionConfiguration"
	Name string `json:"name" yaml:"name"`

	// Archetype 发现远端实例时使用的原型工厂名
	Archetype string `json:"archetype" yaml:"archetype"`

	// Manual 为 true 时不参与批量声明
	Manual bool `json:"manual,omitempty" yaml:"manual,omitempty"`

	// Attributes 属性列表
	Attributes []FieldSpec `json:"attributes" yaml:"attributes"`
}

// InteractionClassSpec 交互类规格
type InteractionClassSpec struct {
	Name       string      `json:"name" yaml:"name"`
	Archetype  string      `json:"archetype" yaml:"archetype"`
	Sharing    Sharing     `json:"sharing" yaml:"sharing"`
	Manual     bool        `json:"manual,omitempty" yaml:"manual,omitempty"`
	Parameters []FieldSpec `json:"parameters" yaml:"parameters"`
}

// Validate 校验对象类规格
func (s *ObjectClassSpec) Validate() error {
	if s.Name == "" {
		return ErrEmptyClassName
	}
	return validateFields(s.Name, s.Attributes)
}

// Validate 校验交互类规格
func (s *InteractionClassSpec) Validate() error {
	if s.Name == "" {
		return ErrEmptyClassName
	}
	return validateFields(s.Name, s.Parameters)
}

func validateFields(class string, fields []FieldSpec) error {
	seen := make(map[string]struct{}, len(fields))
	var errs []error
	for _, f := range fields {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("%s: %w", class, ErrEmptyFieldName))
			continue
		}
		if _, dup := seen[f.Name]; dup {
			errs = append(errs, fmt.Errorf("%s.%s: %w", class, f.Name, ErrDuplicateField))
		}
		seen[f.Name] = struct{}{}
		if f.Sharing != SharingNone && f.Converter.Name == "" {
			errs = append(errs, fmt.Errorf("%s.%s: %w", class, f.Name, ErrMissingConverter))
		}
	}
	return errors.Join(errs...)
}
