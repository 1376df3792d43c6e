package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-federate/pkg/types"
)

// waitArmed 等待闸门进入 Armed
func waitArmed(t *testing.T, g *Gate) {
	t.Helper()
	require.Eventually(t, func() bool { return g.State() == StateArmed }, time.Second, time.Millisecond)
}

// ============================================================================
//                              Arm / Release
// ============================================================================

func TestGate_ArmReleaseUnblocksOnce(t *testing.T) {
	g := New()
	var woke atomic.Int32
	done := make(chan error, 1)

	go func() {
		err := g.Arm(context.Background(), "test", nil)
		woke.Add(1)
		done <- err
	}()

	waitArmed(t, g)
	assert.True(t, g.Release())

	require.NoError(t, <-done)
	assert.Equal(t, int32(1), woke.Load())
	assert.Equal(t, StateIdle, g.State())

	// 第二次释放落在 Idle 上
	assert.False(t, g.Release())
	assert.Equal(t, int32(1), woke.Load())
}

func TestGate_ReleaseIdleIsNoop(t *testing.T) {
	g := New()
	assert.False(t, g.Release())
	assert.Equal(t, StateIdle, g.State())
}

func TestGate_ArmWhileArmedRejected(t *testing.T) {
	g := New()
	done := make(chan error, 1)
	go func() { done <- g.Arm(context.Background(), "first", nil) }()
	waitArmed(t, g)

	err := g.Arm(context.Background(), "second", nil)
	assert.ErrorIs(t, err, types.ErrGateArmed)
	assert.False(t, types.IsFatal(err))

	// 原有等待不受影响
	assert.Equal(t, StateArmed, g.State())
	g.Release()
	require.NoError(t, <-done)
}

func TestGate_ReleaseDuringPrepareIsNotLost(t *testing.T) {
	g := New()
	err := g.Arm(context.Background(), "sync-callback", func() error {
		// 完成回调在请求返回前到达
		assert.True(t, g.Release())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, g.State())
}

func TestGate_PrepareErrorDisarms(t *testing.T) {
	g := New()
	boom := errors.New("boom")
	err := g.Arm(context.Background(), "request", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateIdle, g.State())
}

func TestGate_PrepareAlreadySatisfied(t *testing.T) {
	g := New()
	err := g.Arm(context.Background(), "noop", func() error { return types.ErrAlreadySatisfied })
	assert.NoError(t, err)
	assert.Equal(t, StateIdle, g.State())
}

// ============================================================================
//                              中断与超时
// ============================================================================

func TestGate_InterruptIsFatalAndBreaks(t *testing.T) {
	g := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Arm(ctx, "interrupted", nil) }()
	waitArmed(t, g)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, types.ErrGateInterrupted)
	assert.True(t, types.IsFatal(err))
	assert.Equal(t, StateBroken, g.State())

	err = g.Arm(context.Background(), "after", nil)
	assert.ErrorIs(t, err, types.ErrGateBroken)
	assert.True(t, types.IsFatal(err))
}

func TestGate_TimeoutYieldsStalled(t *testing.T) {
	mock := clock.NewMock()
	var observed atomic.Value
	g := New(WithClock(mock), WithTimeout(5*time.Second), WithObserver(func(name string, _ time.Duration, err error) {
		observed.Store(name)
	}))

	done := make(chan error, 1)
	go func() { done <- g.Arm(context.Background(), "stalled", nil) }()
	waitArmed(t, g)

	// 等待 goroutine 创建定时器后再推进时钟
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		select {
		case err := <-done:
			done <- err
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	err := <-done
	assert.ErrorIs(t, err, types.ErrGateStalled)
	assert.True(t, types.IsFatal(err))
	assert.Equal(t, "stalled", observed.Load())
}

// ============================================================================
//                              Latch
// ============================================================================

func TestLatch_SatisfiedBeforeAwait(t *testing.T) {
	g := New()
	l := NewLatch(g, "anchor")
	l.Satisfy()
	require.NoError(t, l.Await(context.Background()))
	assert.Equal(t, StateIdle, g.State())
}

func TestLatch_SatisfiedWhileWaiting(t *testing.T) {
	g := New()
	l := NewLatch(g, "anchor")
	done := make(chan error, 1)
	go func() { done <- l.Await(context.Background()) }()
	waitArmed(t, g)

	l.Satisfy()
	l.Satisfy()
	require.NoError(t, <-done)
	assert.True(t, l.Satisfied())
	assert.Equal(t, StateIdle, g.State())
}

func TestLatch_RaceReleasesExactlyOnce(t *testing.T) {
	for i := 0; i < 200; i++ {
		g := New()
		l := NewLatch(g, "race")
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Satisfy()
		}()
		require.NoError(t, l.Await(context.Background()))
		wg.Wait()
		assert.Equal(t, StateIdle, g.State())
	}
}
