package execution

import (
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/convert"
	"github.com/dep2p/go-federate/pkg/lib/ecs"
	"github.com/dep2p/go-federate/pkg/lib/encoding"
	"github.com/dep2p/go-federate/pkg/types"
)

// 执行配置属性的 trigger
const (
	TriggerRootFrameName = iota
	TriggerScenarioTimeEpoch
	TriggerCurrentMode
	TriggerNextMode
	TriggerNextModeScenarioTime
	TriggerNextModeCTETime
	TriggerLeastCommonTimeStep

	numTriggers
)

// AttributeNames 执行配置属性名（按 trigger 排列）
var AttributeNames = [numTriggers]string{
	TriggerRootFrameName:        "root_frame_name",
	TriggerScenarioTimeEpoch:    "scenario_time_epoch",
	TriggerCurrentMode:          "current_execution_mode",
	TriggerNextMode:             "next_execution_mode",
	TriggerNextModeScenarioTime: "next_mode_scenario_time",
	TriggerNextModeCTETime:      "next_mode_cte_time",
	TriggerLeastCommonTimeStep:  "least_common_time_step",
}

const fullMask = 1<<numTriggers - 1

// Configuration 执行配置组件
type Configuration struct {
	RootFrameName        string
	ScenarioTimeEpoch    float64
	CurrentMode          Mode
	NextMode             Mode
	NextModeScenarioTime float64
	NextModeCTETime      float64
	LeastCommonTimeStep  int64

	// received 已成功解码过的属性位图
	received uint8
}

// Complete 是否每个属性都至少收到过一次
func (c *Configuration) Complete() bool {
	return c.received&fullMask == fullMask
}

// tracked 记录解码成功的 trigger
type tracked struct {
	trigger int
	inner   interfaces.Converter
}

func (t tracked) Encode(w interfaces.World, id types.EntityID) ([]byte, error) {
	return t.inner.Encode(w, id)
}

func (t tracked) Decode(w interfaces.World, id types.EntityID, data []byte) error {
	if err := t.inner.Decode(w, id, data); err != nil {
		return err
	}
	if c, ok := ecs.Get[Configuration](w, id); ok {
		c.received |= 1 << t.trigger
	}
	return nil
}

// NewConverter 创建执行配置的多字段转换器
func NewConverter() interfaces.MultiConverter {
	m := convert.NewMulti()
	bind := func(trigger int, c interfaces.Converter) {
		m.Bind(trigger, tracked{trigger: trigger, inner: c})
	}
	bind(TriggerRootFrameName, convert.Field(encoding.UnicodeString,
		func(c *Configuration) string { return c.RootFrameName },
		func(c *Configuration, v string) { c.RootFrameName = v }))
	bind(TriggerScenarioTimeEpoch, convert.Field(encoding.Float64LE,
		func(c *Configuration) float64 { return c.ScenarioTimeEpoch },
		func(c *Configuration, v float64) { c.ScenarioTimeEpoch = v }))
	bind(TriggerCurrentMode, convert.Field(ModeCodec,
		func(c *Configuration) Mode { return c.CurrentMode },
		func(c *Configuration, v Mode) { c.CurrentMode = v }))
	bind(TriggerNextMode, convert.Field(ModeCodec,
		func(c *Configuration) Mode { return c.NextMode },
		func(c *Configuration, v Mode) { c.NextMode = v }))
	bind(TriggerNextModeScenarioTime, convert.Field(encoding.Float64LE,
		func(c *Configuration) float64 { return c.NextModeScenarioTime },
		func(c *Configuration, v float64) { c.NextModeScenarioTime = v }))
	bind(TriggerNextModeCTETime, convert.Field(encoding.Float64LE,
		func(c *Configuration) float64 { return c.NextModeCTETime },
		func(c *Configuration, v float64) { c.NextModeCTETime = v }))
	bind(TriggerLeastCommonTimeStep, convert.Field(encoding.Int64BE,
		func(c *Configuration) int64 { return c.LeastCommonTimeStep },
		func(c *Configuration, v int64) { c.LeastCommonTimeStep = v }))
	return m
}

// NewEntity 执行配置原型
func NewEntity(w interfaces.World) (types.EntityID, error) {
	return w.CreateEntity(&Configuration{}), nil
}

// ============================================================================
//                              模式切换请求
// ============================================================================

// ModeTransitionRequest 模式切换请求交互组件
type ModeTransitionRequest struct {
	Mode Mode
}

// ParameterExecutionMode 模式切换请求的参数名
const ParameterExecutionMode = "execution_mode"

// NewModeTransitionConverter 创建 execution_mode 参数转换器
func NewModeTransitionConverter() interfaces.Converter {
	return convert.Field(ModeCodec,
		func(r *ModeTransitionRequest) Mode { return r.Mode },
		func(r *ModeTransitionRequest, v Mode) { r.Mode = v })
}

// NewModeTransitionEntity 模式切换请求原型
func NewModeTransitionEntity(w interfaces.World) (types.EntityID, error) {
	return w.CreateEntity(&ModeTransitionRequest{}), nil
}
