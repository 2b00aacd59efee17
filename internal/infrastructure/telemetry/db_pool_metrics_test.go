package telemetry

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func gaugeBy(t *testing.T, m metricdata.Metrics) map[string]int64 {
	t.Helper()
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "%s is not an int64 gauge", m.Name)

	out := make(map[string]int64)
	for _, dp := range gauge.DataPoints {
		label := ""
		if v, ok := dp.Attributes.Value(AttrDBState); ok {
			label = v.Emit()
		}
		out[label] = dp.Value
	}
	return out
}

func TestRegisterDBPoolMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	stats := sql.DBStats{MaxOpenConnections: 25, OpenConnections: 12, InUse: 10, Idle: 2, WaitCount: 4}
	pool, err := RegisterDBPoolMetrics(provider.Meter("ordersync-test"), func() sql.DBStats { return stats })
	require.NoError(t, err)

	metrics := collect(t, reader)
	assert.Equal(t, map[string]int64{"idle": 2, "in_use": 10, "open": 12},
		gaugeBy(t, metrics["ordersync_db_pool_connections"]))
	assert.Equal(t, map[string]int64{"": 25}, gaugeBy(t, metrics["ordersync_db_pool_connections_max"]))

	waits, ok := metrics["ordersync_db_pool_wait_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, waits.DataPoints, 1)
	assert.EqualValues(t, 4, waits.DataPoints[0].Value)

	stats.InUse, stats.Idle = 1, 11
	assert.Equal(t, int64(1), gaugeBy(t, collect(t, reader)["ordersync_db_pool_connections"])["in_use"])

	require.NoError(t, pool.Unregister())
	assert.NotContains(t, collect(t, reader), "ordersync_db_pool_connections")
}

func TestRegisterDBPoolMetrics_InvalidArgs(t *testing.T) {
	provider := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, err := RegisterDBPoolMetrics(nil, func() sql.DBStats { return sql.DBStats{} })
	assert.ErrorIs(t, err, ErrMeterNil)

	_, err = RegisterDBPoolMetrics(provider.Meter("test"), nil)
	assert.Error(t, err)
}
