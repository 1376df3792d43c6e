package federate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/execution"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/convert"
	"github.com/dep2p/go-federate/pkg/lib/encoding"
	"github.com/dep2p/go-federate/pkg/types"
	"github.com/dep2p/go-federate/tests/mocks"
)

// ════════════════════════════════════════════════════════════════════════════
//                              测试夹具
// ════════════════════════════════════════════════════════════════════════════

type beacon struct {
	Position encoding.Vector3
}

const anchorHandle types.ObjectInstanceHandle = 7

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Federation.FederateName = "Tester"
	cfg.Gate.Timeout = config.Duration(5 * time.Second)
	return cfg
}

// beaconOptions 声明 Beacon 类，并在启动钩子中注册实例 B1
func beaconOptions(rti *mocks.MockRTI, entity *types.EntityID, extra ...Option) []Option {
	opts := []Option{
		WithRTI(rti),
		WithPrometheusRegisterer(prometheus.NewRegistry()),
		WithConverter("position", func() interfaces.Converter {
			return convert.Field(encoding.Vector3LE,
				func(b *beacon) encoding.Vector3 { return b.Position },
				func(b *beacon, v encoding.Vector3) { b.Position = v })
		}),
		WithArchetype("beacon", func(w interfaces.World) (types.EntityID, error) {
			return w.CreateEntity(&beacon{}), nil
		}),
		WithObjectClass(types.ObjectClassSpec{
			Name:      "Beacon",
			Archetype: "beacon",
			Attributes: []types.FieldSpec{
				{Name: "position", Sharing: types.SharingPublish, Converter: types.ConverterRef{Name: "position"}},
			},
		}),
		WithSetup(func(ctx context.Context, f *Federate) error {
			_ = f.WithWorld(func(w interfaces.World) error {
				*entity = w.CreateEntity(&beacon{Position: encoding.Vector3{1, 2, 3}})
				return nil
			})
			_, err := f.RegisterInstance(ctx, "Beacon", *entity, "B1")
			return err
		}),
	}
	return append(opts, extra...)
}

// anchorValues 编码一份完整的执行配置
func anchorValues(rti *mocks.MockRTI, mode execution.Mode, lcts int64) types.AttributeValueMap {
	encoded := map[string][]byte{
		"root_frame_name":         encoding.UnicodeString.Encode("RootFrame"),
		"scenario_time_epoch":     encoding.Float64LE.Encode(0),
		"current_execution_mode":  execution.ModeCodec.Encode(mode),
		"next_execution_mode":     execution.ModeCodec.Encode(mode),
		"next_mode_scenario_time": encoding.Float64LE.Encode(0),
		"next_mode_cte_time":      encoding.Float64LE.Encode(0),
		"least_common_time_step":  encoding.Int64BE.Encode(lcts),
	}
	values := make(types.AttributeValueMap, len(encoded))
	for name, data := range encoded {
		values[rti.AttributeHandleOf(config.DefaultAnchorClass, name)] = data
	}
	return values
}

// publishAnchorOnSubscribe 在等待锚对象时投递发现与首次完整更新
func publishAnchorOnSubscribe(f *Federate, rti *mocks.MockRTI, lcts int64) {
	var once sync.Once
	f.OnPhaseChange(func(_, to string) {
		if to != "awaiting_anchor_discovery" {
			return
		}
		once.Do(func() {
			class := rti.ObjectClassHandleOf(config.DefaultAnchorClass)
			values := anchorValues(rti, execution.ModeRunning, lcts)
			rti.Deliver(func(cb interfaces.FederateAmbassador) {
				cb.DiscoverObjectInstance(anchorHandle, class, config.DefaultAnchorInstance)
				cb.ReflectAttributeValues(anchorHandle, values, nil)
			})
		})
	})
}

func startWithoutAnchor(t *testing.T, extra ...Option) (*Federate, *mocks.MockRTI, types.EntityID) {
	t.Helper()
	rti := mocks.NewMockRTI()
	var entity types.EntityID
	opts := beaconOptions(rti, &entity, append([]Option{WithConfig(testConfig()), WithoutAnchor(1_000_000)}, extra...)...)
	f, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	require.NoError(t, f.Start(context.Background()))
	return f, rti, entity
}

// ════════════════════════════════════════════════════════════════════════════
//                              创建
// ════════════════════════════════════════════════════════════════════════════

func TestNew_RequiresRTI(t *testing.T) {
	_, err := New(WithConfig(testConfig()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RTI")
}

func TestNew_UnregisteredConverterFails(t *testing.T) {
	_, err := New(
		WithRTI(mocks.NewMockRTI()),
		WithConfig(testConfig()),
		WithPrometheusRegisterer(prometheus.NewRegistry()),
		WithArchetype("beacon", func(w interfaces.World) (types.EntityID, error) {
			return w.CreateEntity(&beacon{}), nil
		}),
		WithObjectClass(types.ObjectClassSpec{
			Name:      "Beacon",
			Archetype: "beacon",
			Attributes: []types.FieldSpec{
				{Name: "position", Sharing: types.SharingPublish, Converter: types.ConverterRef{Name: "missing"}},
			},
		}),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnknownConverter)
}

func TestNew_ConfigAndFileAreExclusive(t *testing.T) {
	_, err := New(
		WithRTI(mocks.NewMockRTI()),
		WithConfig(testConfig()),
		WithConfigFile("federate.yaml"),
	)
	require.Error(t, err)
}

// ════════════════════════════════════════════════════════════════════════════
//                              启动
// ════════════════════════════════════════════════════════════════════════════

func TestStart_WithoutAnchorPublishesPosition(t *testing.T) {
	f, rti, b1 := startWithoutAnchor(t)

	assert.Equal(t, "time_synchronized", f.Phase())
	assert.Equal(t, types.LogicalTime(1_000_000), f.Present())
	assert.Equal(t, types.LogicalTimeInterval(1_000_000), f.Lookahead())
	assert.Equal(t, []types.LogicalTimeInterval{1_000_000}, rti.RegulationCalls)
	assert.Equal(t, 1, rti.ConstrainedCalls)

	id, ok := f.Instance("B1")
	require.True(t, ok)
	assert.Equal(t, b1, id)

	require.NoError(t, f.UpdateInstance(b1, nil))
	call, ok := rti.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, rti.Registered["B1"], call.Object)
	require.Len(t, call.Values, 1)
	assert.Equal(t, encoding.Vector3LE.Encode(encoding.Vector3{1, 2, 3}),
		call.Values[rti.AttributeHandleOf("Beacon", "position")])
}

func TestStart_WithAnchor(t *testing.T) {
	rti := mocks.NewMockRTI()
	rti.GALT = 2_500_000
	rti.GALTValid = true
	var b1 types.EntityID
	f, err := New(beaconOptions(rti, &b1, WithConfig(testConfig()))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	publishAnchorOnSubscribe(f, rti, 1_000_000)

	require.NoError(t, f.Start(context.Background()))

	assert.Equal(t, ModeRunning, f.Mode())
	assert.Equal(t, types.LogicalTime(3_000_000), f.Present())
	assert.Equal(t, []types.LogicalTimeInterval{1_000_000}, rti.RegulationCalls)
	assert.Equal(t, 1, rti.PublishInteraction[rti.InteractionClassHandleOf(config.DefaultModeTransition)])
	assert.Equal(t, 1, rti.SubscribeObjectCalls[rti.ObjectClassHandleOf(config.DefaultAnchorClass)])
}

func TestStart_GeneratesFederateName(t *testing.T) {
	cfg := testConfig()
	cfg.Federation.FederateName = ""
	f, _, _ := startWithoutAnchor(t, WithConfig(cfg))
	assert.True(t, strings.HasPrefix(f.FederateName(), "go-federate-"), f.FederateName())
}

func TestStart_ConnectFailureIsFatal(t *testing.T) {
	rti := mocks.NewMockRTI()
	rti.ConnectFunc = func(context.Context, string, int) error { return errors.New("refused") }
	var b1 types.EntityID
	f, err := New(beaconOptions(rti, &b1, WithConfig(testConfig()), WithoutAnchor(1_000_000))...)
	require.NoError(t, err)

	err = f.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	require.NoError(t, f.Close())
	assert.Equal(t, 0, rti.ResignCalls)
}

func TestStart_RequiredObjectsCancelled(t *testing.T) {
	rti := mocks.NewMockRTI()
	var b1 types.EntityID
	f, err := New(beaconOptions(rti, &b1,
		WithConfig(testConfig()),
		WithoutAnchor(1_000_000),
		WithRequiredObjects("Rover"))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	f.OnPhaseChange(func(_, to string) {
		if to == "awaiting_required_objects" {
			cancel()
		}
	})
	err = f.Start(ctx)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrGateInterrupted)
}

func TestStart_Twice(t *testing.T) {
	f, _, _ := startWithoutAnchor(t)
	assert.ErrorIs(t, f.Start(context.Background()), ErrAlreadyStarted)
}

// ════════════════════════════════════════════════════════════════════════════
//                              主循环
// ════════════════════════════════════════════════════════════════════════════

func TestRun_MaxSteps(t *testing.T) {
	cfg := testConfig()
	cfg.Run.MaxSteps = 3
	f, rti, _ := startWithoutAnchor(t, WithConfig(cfg))

	require.NoError(t, f.Run(context.Background()))
	rti.Drain()

	assert.Equal(t, []types.LogicalTime{1_000_000, 2_000_000, 3_000_000, 4_000_000}, rti.AdvanceRequests())
	assert.Equal(t, types.LogicalTime(4_000_000), f.Present())
	assert.Equal(t, 3, rti.UpdateCount())
	assert.Equal(t, 1, rti.ResignCalls)
	assert.Equal(t, 1, rti.DisconnectCalls)
	assert.Equal(t, "terminated", f.Phase())
}

func TestRun_StopsOnAnchorRemoval(t *testing.T) {
	rti := mocks.NewMockRTI()
	var b1 types.EntityID
	f, err := New(beaconOptions(rti, &b1, WithConfig(testConfig()))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	publishAnchorOnSubscribe(f, rti, 1_000_000)
	require.NoError(t, f.Start(context.Background()))

	rti.Callbacks().RemoveObjectInstance(anchorHandle, nil)

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, 1, rti.ResignCalls)
	assert.Equal(t, "terminated", f.Phase())
}

func TestRun_StopsOnShutdownMode(t *testing.T) {
	rti := mocks.NewMockRTI()
	var b1 types.EntityID
	f, err := New(beaconOptions(rti, &b1, WithConfig(testConfig()))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	publishAnchorOnSubscribe(f, rti, 1_000_000)
	require.NoError(t, f.Start(context.Background()))

	rti.Callbacks().ReflectAttributeValues(anchorHandle, anchorValues(rti, execution.ModeShutdown, 1_000_000), nil)
	assert.Equal(t, ModeShutdown, f.Mode())

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, 1, rti.ResignCalls)
}

func TestRun_CancelledContext(t *testing.T) {
	f, rti, _ := startWithoutAnchor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.Run(ctx))
	assert.Equal(t, 1, rti.ResignCalls)
}

func TestRun_ShutdownFromAnotherGoroutine(t *testing.T) {
	var steps int
	cfg := testConfig()
	cfg.Run.AutoUpdate = false

	rti := mocks.NewMockRTI()
	var b1 types.EntityID
	f, err := New(beaconOptions(rti, &b1, WithConfig(cfg), WithoutAnchor(1_000_000))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, f.Start(context.Background()))

	rti.TimeAdvanceRequestFunc = func(types.LogicalTime) error {
		steps++
		if steps == 2 {
			go func() { _ = f.Shutdown() }()
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after shutdown")
	}
	assert.Equal(t, 1, rti.ResignCalls)
}

func TestRun_BeforeStart(t *testing.T) {
	rti := mocks.NewMockRTI()
	var b1 types.EntityID
	f, err := New(beaconOptions(rti, &b1, WithConfig(testConfig()), WithoutAnchor(1_000_000))...)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Run(context.Background()), ErrNotStarted)
	assert.ErrorIs(t, f.Shutdown(), ErrNotStarted)
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

func TestShutdown_ResignsOnce(t *testing.T) {
	f, rti, _ := startWithoutAnchor(t)

	require.NoError(t, f.Shutdown())
	require.NoError(t, f.Shutdown())
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	assert.Equal(t, 1, rti.ResignCalls)
	assert.Equal(t, 1, rti.DisconnectCalls)
	assert.ErrorIs(t, f.Run(context.Background()), ErrClosed)
}

func TestShutdown_ResignErrorReturned(t *testing.T) {
	f, rti, _ := startWithoutAnchor(t)
	rti.ResignFunc = func(types.ResignAction) error { return errors.New("rti gone") }

	err := f.Shutdown()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "resign"))
	assert.Equal(t, 1, rti.DisconnectCalls)
}

// ════════════════════════════════════════════════════════════════════════════
//                              交互
// ════════════════════════════════════════════════════════════════════════════

func TestRequestModeTransition(t *testing.T) {
	rti := mocks.NewMockRTI()
	var b1 types.EntityID
	f, err := New(beaconOptions(rti, &b1, WithConfig(testConfig()))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	publishAnchorOnSubscribe(f, rti, 1_000_000)
	require.NoError(t, f.Start(context.Background()))

	require.NoError(t, f.RequestModeTransition(ModeFreeze))
	require.Len(t, rti.Interactions, 1)
	call := rti.Interactions[0]
	assert.Equal(t, rti.InteractionClassHandleOf(config.DefaultModeTransition), call.Class)
	param := rti.ParameterHandleOf(config.DefaultModeTransition, execution.ParameterExecutionMode)
	assert.Equal(t, execution.ModeCodec.Encode(execution.ModeFreeze), call.Params[param])

	assert.Error(t, f.RequestModeTransition(ModeInitializing))
}

func TestRequestModeTransition_WithoutAnchor(t *testing.T) {
	f, _, _ := startWithoutAnchor(t)
	assert.Error(t, f.RequestModeTransition(ModeFreeze))
}

func TestNew_LogOutputFollowsConfig(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := testConfig()
	cfg.Log.Format = "json"
	var buf bytes.Buffer
	var b1 types.EntityID
	_, err := New(beaconOptions(mocks.NewMockRTI(), &b1, WithConfig(cfg), WithoutAnchor(1_000_000), WithLogOutput(&buf))...)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"component":"federate"`)
	assert.Contains(t, buf.String(), "联邦成员已创建")
}

func TestStart_IntrospectServesReport(t *testing.T) {
	cfg := testConfig()
	cfg.Introspect.Enabled = true
	cfg.Introspect.Addr = "127.0.0.1:0"
	f, _, _ := startWithoutAnchor(t, WithConfig(cfg))
	require.NotEmpty(t, f.IntrospectAddr())

	resp, err := http.Get("http://" + f.IntrospectAddr() + "/debug/introspect")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Federate struct {
			Phase     string `json:"phase"`
			Connected bool   `json:"connected"`
		} `json:"federate"`
		Instances struct {
			Local int `json:"local"`
		} `json:"instances"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "time_synchronized", report.Federate.Phase)
	assert.True(t, report.Federate.Connected)
	assert.Equal(t, 1, report.Instances.Local)
}

func TestStart_IntrospectDisabledByDefault(t *testing.T) {
	f, _, _ := startWithoutAnchor(t)
	assert.Empty(t, f.IntrospectAddr())
}
