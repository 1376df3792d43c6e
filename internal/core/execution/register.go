package execution

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-federate/internal/core/registry"
	"github.com/dep2p/go-federate/pkg/types"
)

// 注册到类注册表的转换器与原型名
const (
	ConverterName           = "execution-configuration"
	ArchetypeName           = "execution-configuration"
	ModeConverterName       = "execution-mode"
	ModeTransitionArchetype = "mode-transition-request"
)

// Register 在注册表中登记执行配置对象类与模式切换请求交互类
//
// 两个类都标记为手动声明：锚类在启动早期单独订阅，
// 模式切换请求在锚值到达后单独发布。类名为空时跳过对应的类。
func Register(reg *registry.Registry, anchorClass, modeTransitionClass string) error {
	reg.RegisterMultiConverter(ConverterName, NewConverter)
	reg.RegisterArchetype(ArchetypeName, NewEntity)
	reg.RegisterConverter(ModeConverterName, NewModeTransitionConverter)
	reg.RegisterArchetype(ModeTransitionArchetype, NewModeTransitionEntity)

	var errs error
	if anchorClass != "" {
		attrs := make([]types.FieldSpec, 0, numTriggers)
		for trigger, name := range AttributeNames {
			attrs = append(attrs, types.FieldSpec{
				Name:      name,
				Sharing:   types.SharingSubscribe,
				Converter: types.ConverterRef{Name: ConverterName, Multi: true, Trigger: trigger},
				Required:  true,
			})
		}
		_, err := reg.RegisterObjectClass(types.ObjectClassSpec{
			Name:       anchorClass,
			Archetype:  ArchetypeName,
			Manual:     true,
			Attributes: attrs,
		})
		multierr.AppendInto(&errs, err)
	}
	if modeTransitionClass != "" {
		_, err := reg.RegisterInteractionClass(types.InteractionClassSpec{
			Name:      modeTransitionClass,
			Archetype: ModeTransitionArchetype,
			Sharing:   types.SharingPublish,
			Manual:    true,
			Parameters: []types.FieldSpec{{
				Name:      ParameterExecutionMode,
				Sharing:   types.SharingPublish,
				Converter: types.ConverterRef{Name: ModeConverterName},
			}},
		})
		multierr.AppendInto(&errs, err)
	}
	if errs != nil {
		return fmt.Errorf("register execution classes: %w", errs)
	}
	return nil
}
