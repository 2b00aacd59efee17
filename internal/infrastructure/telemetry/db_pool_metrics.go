package telemetry

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AttrDBState labels pool connections by state.
var AttrDBState = attribute.Key("state")

// DBStatsFunc reports connection pool statistics, typically (*sql.DB).Stats.
type DBStatsFunc func() sql.DBStats

// DBPoolMetrics exports connection pool gauges
type DBPoolMetrics struct {
	registration metric.Registration
}

// RegisterDBPoolMetrics observes stats on every collection cycle.
func RegisterDBPoolMetrics(meter metric.Meter, stats DBStatsFunc) (*DBPoolMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if stats == nil {
		return nil, errors.New("telemetry: db stats source cannot be nil")
	}

	connections, err := meter.Int64ObservableGauge("ordersync_db_pool_connections",
		metric.WithDescription("Connections in the database pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	maxOpen, err := meter.Int64ObservableGauge("ordersync_db_pool_connections_max",
		metric.WithDescription("Maximum open connections allowed by the pool"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	waits, err := meter.Int64ObservableCounter("ordersync_db_pool_wait_total",
		metric.WithDescription("Connection requests that had to wait for a free connection"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, err
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(connections, int64(s.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(connections, int64(s.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(connections, int64(s.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, connections, maxOpen, waits)
	if err != nil {
		return nil, err
	}
	return &DBPoolMetrics{registration: reg}, nil
}

// Unregister stops observing the pool
func (m *DBPoolMetrics) Unregister() error {
	return m.registration.Unregister()
}
