package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/types"
)

func recv(t *testing.T, sub interfaces.Subscription) any {
	t.Helper()
	select {
	case evt := <-sub.Out():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// ============================================================================
// 订阅与发射
// ============================================================================

func TestBus_EmitAndReceive(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.EvtInstanceDiscovered))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(types.EvtInstanceDiscovered))
	require.NoError(t, err)
	defer em.Close()

	want := types.EvtInstanceDiscovered{Entity: 7, Handle: 1001, Name: "B9", Class: "Beacon"}
	require.NoError(t, em.Emit(want))

	assert.Equal(t, want, recv(t, sub))
}

func TestBus_RoutesByType(t *testing.T) {
	bus := NewBus()

	removed, err := bus.Subscribe(new(types.EvtInstanceRemoved))
	require.NoError(t, err)
	defer removed.Close()

	em, err := bus.Emitter(new(types.EvtInstanceDiscovered))
	require.NoError(t, err)
	require.NoError(t, em.Emit(types.EvtInstanceDiscovered{Name: "B9"}))

	select {
	case evt := <-removed.Out():
		t.Fatalf("unexpected event %v", evt)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_InvalidEventType(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = bus.Subscribe(types.EvtShutdownRequested{})
	assert.ErrorIs(t, err, ErrNonPointerType)

	_, err = bus.Emitter(types.EvtShutdownRequested{})
	assert.ErrorIs(t, err, ErrNonPointerType)
}

func TestBus_StatefulDeliversLast(t *testing.T) {
	bus := NewBus()

	em, err := bus.Emitter(new(types.EvtPhaseChanged), Stateful())
	require.NoError(t, err)
	require.NoError(t, em.Emit(types.EvtPhaseChanged{From: "connected", To: "running"}))

	sub, err := bus.Subscribe(new(types.EvtPhaseChanged))
	require.NoError(t, err)
	defer sub.Close()

	evt := recv(t, sub).(types.EvtPhaseChanged)
	assert.Equal(t, "running", evt.To)
}

// ============================================================================
// 慢消费者
// ============================================================================

func TestBus_SlowConsumerDropsWithoutBlocking(t *testing.T) {
	var hooked atomic.Int64
	bus := NewBus(WithDropHook(func(reflect.Type) { hooked.Add(1) }))

	sub, err := bus.Subscribe(new(types.EvtInstanceReflected), BufSize(1))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(types.EvtInstanceReflected))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = em.Emit(types.EvtInstanceReflected{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full subscriber")
	}
	assert.Equal(t, int64(4), bus.Dropped(new(types.EvtInstanceReflected)))
	assert.Equal(t, int64(4), hooked.Load())
}

// ============================================================================
// 关闭
// ============================================================================

func TestBus_CloseClosesSubscriptions(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(types.EvtShutdownRequested))
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, ok := <-sub.Out()
	assert.False(t, ok)

	_, err = bus.Subscribe(new(types.EvtShutdownRequested))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEmitter_EmitAfterClose(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(types.EvtShutdownRequested))
	require.NoError(t, err)
	require.NoError(t, em.Close())
	require.NoError(t, em.Close())
	assert.ErrorIs(t, em.Emit(types.EvtShutdownRequested{}), ErrClosed)
}

func TestBus_ConcurrentSubscribeEmitClose(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(types.EvtInstanceRemoved))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub, err := bus.Subscribe(new(types.EvtInstanceRemoved), BufSize(4))
			if err != nil {
				return
			}
			time.Sleep(time.Millisecond)
			sub.Close()
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = em.Emit(types.EvtInstanceRemoved{})
			}
		}()
	}
	wg.Wait()
}
