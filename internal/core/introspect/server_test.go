package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/internal/core/execution"
	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/internal/core/gate"
	"github.com/dep2p/go-federate/internal/core/instance"
	"github.com/dep2p/go-federate/internal/core/lifecycle"
	"github.com/dep2p/go-federate/internal/core/metrics"
	"github.com/dep2p/go-federate/internal/core/registry"
	"github.com/dep2p/go-federate/internal/core/timing"
	"github.com/dep2p/go-federate/pkg/lib/ecs"
	"github.com/dep2p/go-federate/pkg/types"
	"github.com/dep2p/go-federate/tests/mocks"
)

func newServer(t *testing.T, addr string) (*Server, *instance.Manager) {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Federation.Name = "SpaceFederation"

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	fc := fedctx.New(cfg, mocks.NewMockRTI(), ecs.NewMemoryWorld(), registry.New(),
		gate.New(gate.WithTimeout(time.Second)), lifecycle.NewCoordinator(), nil, m, nil)
	mgr := instance.NewManager(fc)

	s := New(Config{
		Addr:      addr,
		Context:   fc,
		Instances: mgr,
		Timing:    timing.NewCoordinator(fc),
		Tracker:   execution.NewTracker(fc),
		Gatherer:  reg,
	})
	return s, mgr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Report(t *testing.T) {
	s, mgr := newServer(t, "")
	require.NoError(t, mgr.Mapping().Put(instance.Entry{
		Entity: 1, Handle: 10, Name: "B1", Class: "Beacon", Origin: types.OriginLocal,
	}))
	require.NoError(t, mgr.Mapping().Put(instance.Entry{
		Entity: 2, Handle: 11, Name: "A1", Class: "Beacon", Origin: types.OriginRemote,
	}))

	rec := get(t, s.Handler(), "/debug/introspect")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var r Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "SpaceFederation", r.Federate.Federation)
	assert.Equal(t, "disconnected", r.Federate.Phase)
	assert.False(t, r.Federate.Connected)
	assert.Nil(t, r.Execution)
	assert.Equal(t, InstanceCounts{Local: 1, Remote: 1}, r.Instances)
}

func TestServer_Instances(t *testing.T) {
	s, mgr := newServer(t, "")
	require.NoError(t, mgr.Mapping().Put(instance.Entry{
		Entity: 1, Handle: 10, Name: "B1", Class: "Beacon", Origin: types.OriginLocal,
	}))
	require.NoError(t, mgr.Mapping().Put(instance.Entry{
		Entity: 2, Handle: 11, Name: "A1", Class: "Beacon", Origin: types.OriginRemote,
	}))

	rec := get(t, s.Handler(), "/debug/introspect/instances")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []InstanceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "A1", out[0].Name)
	assert.Equal(t, "remote", out[0].Origin)
	assert.Equal(t, "B1", out[1].Name)
	assert.Equal(t, uint64(10), out[1].Handle)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s, _ := newServer(t, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/introspect", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	s, mgr := newServer(t, "")
	require.NoError(t, mgr.Mapping().Put(instance.Entry{
		Entity: 1, Handle: 10, Name: "B1", Class: "Beacon", Origin: types.OriginLocal,
	}))

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "federate_instances")
}

func TestServer_StartStop(t *testing.T) {
	s, _ := newServer(t, "127.0.0.1:0")
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status": "ok"`)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
