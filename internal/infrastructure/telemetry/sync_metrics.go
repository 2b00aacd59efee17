package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/erp/ordersync/internal/domain/integration"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// SyncMetrics records the counters of the order sync engine.
type SyncMetrics struct {
	fetched      *Counter
	saved        *Counter
	failed       *Counter
	retries      *Counter
	forcedRanges *Counter
	runs         *Counter
	pageDuration *Histogram
	runDuration  *Histogram
}

// NewSyncMetrics registers the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &SyncMetrics{}
	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&m.fetched, "ordersync_orders_fetched_total", "Orders returned by the marketplace search", "{orders}"},
		{&m.saved, "ordersync_orders_saved_total", "Reconciled orders upserted", "{orders}"},
		{&m.failed, "ordersync_orders_failed_total", "Sync errors by kind", "{errors}"},
		{&m.retries, "ordersync_upstream_retries_total", "Marketplace requests retried, by status", "{requests}"},
		{&m.forcedRanges, "ordersync_forced_ranges_total", "Date ranges paged despite exceeding the result ceiling", "{ranges}"},
		{&m.runs, "ordersync_runs_total", "Completed sync runs by status", "{runs}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	m.pageDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ordersync_page_duration_seconds",
		Description: "Time to fetch and enrich one search page",
		Unit:        "s",
		Boundaries:  PageDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ordersync_run_duration_seconds",
		Description: "Wall time of a sync run",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Retries returns the counter the marketplace client increments on each retry.
func (m *SyncMetrics) Retries() *Counter {
	return m.retries
}

func (m *SyncMetrics) RecordFetched(ctx context.Context, n int) {
	if n > 0 {
		m.fetched.Add(ctx, int64(n))
	}
}

func (m *SyncMetrics) RecordSaved(ctx context.Context, n int) {
	if n > 0 {
		m.saved.Add(ctx, int64(n))
	}
}

func (m *SyncMetrics) RecordFailed(ctx context.Context, kind integration.ErrorKind, n int) {
	if n > 0 {
		m.failed.Add(ctx, int64(n), AttrErrorKind.String(string(kind)))
	}
}

func (m *SyncMetrics) RecordForcedRange(ctx context.Context) {
	m.forcedRanges.Inc(ctx)
}

func (m *SyncMetrics) RecordPageDuration(ctx context.Context, d time.Duration) {
	m.pageDuration.RecordDuration(ctx, d)
}

func (m *SyncMetrics) RecordRun(ctx context.Context, status integration.SyncStatus, d time.Duration) {
	m.runs.Inc(ctx, AttrSyncStatus.String(string(status)))
	m.runDuration.RecordDuration(ctx, d, AttrSyncStatus.String(string(status)))
}
