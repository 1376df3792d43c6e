package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-federate/pkg/types"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Callback("discover")
		m.Discarded("unknown_class")
		m.ObserveGate("tar", time.Millisecond, nil)
		m.LogicalTime(1)
		m.Grant()
		m.InstanceAdded(types.OriginLocal)
		m.InstanceRemoved(types.OriginLocal)
		m.EventDropped(nil)
	})
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Callback("reflect")
	m.Callback("reflect")
	m.Discarded("incomplete")
	m.Grant()
	m.LogicalTime(3_000_000)
	m.InstanceAdded(types.OriginRemote)
	m.InstanceAdded(types.OriginRemote)
	m.InstanceRemoved(types.OriginRemote)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.callbacks.WithLabelValues("reflect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discarded.WithLabelValues("incomplete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.grants))
	assert.Equal(t, 3e6, testutil.ToFloat64(m.logicalTime))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.instances.WithLabelValues("remote")))
}

func TestMetrics_GateFailuresIgnoreArmedRejection(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.ObserveGate("tar", time.Millisecond, nil)
	m.ObserveGate("tar", time.Millisecond, types.ErrGateArmed)
	m.ObserveGate("tar", time.Second, errors.Join(types.ErrGateStalled))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateFailures.WithLabelValues("tar")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.gateWait))
}

func TestMetrics_RegisterTwiceTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	a.Grant()
	b.Grant()
	assert.Equal(t, 2.0, testutil.ToFloat64(a.grants))
}
