package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-federate/config"
	"github.com/dep2p/go-federate/pkg/types"
)

// ============================================================================
// Fx 模块测试
// ============================================================================

func TestModule_ProvidesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	var m *Metrics

	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		fx.Provide(func() prometheus.Registerer { return reg }),
		Module(),
		fx.Populate(&m),
	)
	defer app.RequireStart().RequireStop()

	require.NotNil(t, m)
	m.InstanceAdded(types.OriginRemote)
	n, err := testutil.GatherAndCount(reg, "federate_instances")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestModule_DisabledProvidesNil(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = false
	m := &Metrics{}

	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&m),
	)
	defer app.RequireStart().RequireStop()

	assert.Nil(t, m)
}
