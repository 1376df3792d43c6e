package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/internal/core/gate"
	"github.com/dep2p/go-federate/internal/core/instance"
	"github.com/dep2p/go-federate/internal/core/lifecycle"
	"github.com/dep2p/go-federate/internal/core/registry"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/ecs"
	"github.com/dep2p/go-federate/pkg/lib/encoding"
	"github.com/dep2p/go-federate/pkg/types"
	"github.com/dep2p/go-federate/tests/mocks"
)

func TestModeCodec(t *testing.T) {
	for m := ModeUninitialized; m <= ModeShutdown; m++ {
		data := ModeCodec.Encode(m)
		assert.Equal(t, []byte{0, byte(m)}, data)
		got, err := ModeCodec.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ModeCodec.Decode([]byte{0, 9})
	assert.ErrorIs(t, err, types.ErrMalformedValue)
	_, err = ModeCodec.Decode([]byte{0})
	assert.ErrorIs(t, err, types.ErrMalformedValue)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("freeze")
	require.NoError(t, err)
	assert.Equal(t, ModeFreeze, m)
	assert.Equal(t, "freeze", m.String())

	_, err = ParseMode("paused")
	assert.Error(t, err)
	assert.Equal(t, "unknown(42)", Mode(42).String())
}

// fullUpdate 按 trigger 编码一组执行配置值
func fullUpdate(lcts int64, current, next Mode) map[int][]byte {
	return map[int][]byte{
		TriggerRootFrameName:        encoding.UnicodeString.Encode("SolarSystemBarycentricInertial"),
		TriggerScenarioTimeEpoch:    encoding.Float64LE.Encode(2451545.0),
		TriggerCurrentMode:          ModeCodec.Encode(current),
		TriggerNextMode:             ModeCodec.Encode(next),
		TriggerNextModeScenarioTime: encoding.Float64LE.Encode(0),
		TriggerNextModeCTETime:      encoding.Float64LE.Encode(0),
		TriggerLeastCommonTimeStep:  encoding.Int64BE.Encode(lcts),
	}
}

func TestConverter_DecodesOnlyTriggeredField(t *testing.T) {
	w := ecs.NewMemoryWorld()
	id, err := NewEntity(w)
	require.NoError(t, err)
	conv := NewConverter()

	require.NoError(t, conv.Decode(w, id, TriggerLeastCommonTimeStep, encoding.Int64BE.Encode(250_000)))
	c, _ := ecs.Get[Configuration](w, id)
	assert.Equal(t, int64(250_000), c.LeastCommonTimeStep)
	assert.Empty(t, c.RootFrameName)
	assert.False(t, c.Complete())

	// 解码失败不改变字段，也不计为已收到
	assert.Error(t, conv.Decode(w, id, TriggerCurrentMode, []byte{0, 77}))
	assert.Equal(t, ModeUninitialized, c.CurrentMode)

	for trigger, data := range fullUpdate(1_000_000, ModeRunning, ModeRunning) {
		require.NoError(t, conv.Decode(w, id, trigger, data))
	}
	assert.True(t, c.Complete())
	assert.Equal(t, "SolarSystemBarycentricInertial", c.RootFrameName)
	assert.Equal(t, ModeRunning, c.CurrentMode)
	assert.Equal(t, int64(1_000_000), c.LeastCommonTimeStep)

	data, err := conv.Encode(w, id, TriggerLeastCommonTimeStep)
	require.NoError(t, err)
	assert.Equal(t, encoding.Int64BE.Encode(1_000_000), data)
}

func TestRegister(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg, config.DefaultAnchorClass, config.DefaultModeTransition))
	require.NoError(t, reg.Validate())

	oc, ok := reg.ObjectClass(config.DefaultAnchorClass)
	require.True(t, ok)
	assert.True(t, oc.Manual())
	require.Len(t, oc.Attributes(), 7)
	for i, f := range oc.Attributes() {
		assert.Equal(t, AttributeNames[i], f.Name())
		assert.True(t, f.Required())
		assert.Equal(t, types.SharingSubscribe, f.Sharing())
	}

	ic, ok := reg.InteractionClass(config.DefaultModeTransition)
	require.True(t, ok)
	assert.True(t, ic.Manual())
	_, ok = ic.Parameter(ParameterExecutionMode)
	assert.True(t, ok)

	err := Register(reg, config.DefaultAnchorClass, config.DefaultModeTransition)
	assert.ErrorIs(t, err, types.ErrClassExists)
}

func TestRegister_SkipsEmptyClassNames(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg, "", ""))
	assert.Empty(t, reg.ObjectClasses())
	assert.Empty(t, reg.InteractionClasses())
}

func newTracker(t *testing.T) (*Tracker, *fedctx.Context, *ecs.MemoryWorld) {
	t.Helper()
	w := ecs.NewMemoryWorld()
	reg := registry.New()
	require.NoError(t, Register(reg, config.DefaultAnchorClass, config.DefaultModeTransition))
	fc := fedctx.New(config.NewConfig(), mocks.NewMockRTI(), w, reg, gate.New(), lifecycle.NewCoordinator(), nil, nil, nil)
	return NewTracker(fc), fc, w
}

func TestTracker_ReadyAfterFullUpdate(t *testing.T) {
	tr, _, w := newTracker(t)
	assert.False(t, tr.Ready())
	assert.Equal(t, ModeUninitialized, tr.CurrentMode())

	id, _ := NewEntity(w)
	tr.Bind(id)
	assert.Equal(t, id, tr.Entity())
	assert.False(t, tr.Ready())

	conv := NewConverter()
	update := fullUpdate(500_000, ModeInitializing, ModeRunning)
	require.NoError(t, conv.Decode(w, id, TriggerLeastCommonTimeStep, update[TriggerLeastCommonTimeStep]))
	assert.False(t, tr.Ready())
	assert.Equal(t, ModeUninitialized, tr.CurrentMode())

	for trigger, data := range update {
		require.NoError(t, conv.Decode(w, id, trigger, data))
	}
	assert.True(t, tr.Ready())
	assert.Equal(t, types.LogicalTimeInterval(500_000), tr.LeastCommonTimeStep())
	assert.Equal(t, ModeInitializing, tr.CurrentMode())
	assert.False(t, tr.ShuttingDown())

	snap, ok := tr.Snapshot()
	require.True(t, ok)
	assert.Equal(t, ModeRunning, snap.NextMode)

	require.NoError(t, conv.Decode(w, id, TriggerNextMode, ModeCodec.Encode(ModeShutdown)))
	assert.True(t, tr.ShuttingDown())
}

type recordingSender struct {
	w     *ecs.MemoryWorld
	class string
	mode  Mode
	err   error
}

func (s *recordingSender) SendWith(className string, fill func(w interfaces.World, id types.EntityID) error, _ []byte) error {
	if s.err != nil {
		return s.err
	}
	id, _ := NewModeTransitionEntity(s.w)
	defer s.w.DestroyEntity(id)
	if err := fill(s.w, id); err != nil {
		return err
	}
	s.class = className
	s.mode, _ = DecodeModeTransition(s.w, id)
	return nil
}

func TestRequestModeTransition(t *testing.T) {
	s := &recordingSender{w: ecs.NewMemoryWorld()}

	require.NoError(t, RequestModeTransition(s, config.DefaultModeTransition, ModeFreeze))
	assert.Equal(t, config.DefaultModeTransition, s.class)
	assert.Equal(t, ModeFreeze, s.mode)

	assert.ErrorIs(t, RequestModeTransition(s, "x", ModeInitializing), types.ErrMalformedValue)
	assert.ErrorIs(t, RequestModeTransition(s, "x", Mode(12)), types.ErrMalformedValue)

	s.err = errors.New("boom")
	assert.EqualError(t, RequestModeTransition(s, "x", ModeShutdown), "boom")
}

func TestRequestModeTransition_ThroughManager(t *testing.T) {
	_, fc, w := newTracker(t)
	rti := fc.Ambassador().(*mocks.MockRTI)
	rti.SyncCallbacks = true
	require.NoError(t, rti.Connect(context.Background(), nil, "localhost", 8989))
	fc.SetConnected(true)

	ic, _ := fc.Registry.InteractionClass(config.DefaultModeTransition)
	require.NoError(t, ic.Publish(rti))

	m := instance.NewManager(fc)
	require.NoError(t, RequestModeTransition(m, config.DefaultModeTransition, ModeShutdown))

	require.Len(t, rti.Interactions, 1)
	call := rti.Interactions[0]
	assert.Equal(t, rti.InteractionClassHandleOf(config.DefaultModeTransition), call.Class)
	ph := rti.ParameterHandleOf(config.DefaultModeTransition, ParameterExecutionMode)
	assert.Equal(t, ModeCodec.Encode(ModeShutdown), call.Params[ph])
	assert.Equal(t, 0, w.Len())
}
