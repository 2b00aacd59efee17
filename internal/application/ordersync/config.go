package ordersync

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when the engine configuration is unusable
var ErrInvalidConfig = errors.New("ordersync: invalid configuration")

// Config tunes window selection, partitioning, paging and concurrency
type Config struct {
	// HistoryStart is the floor below which no order is fetched
	HistoryStart time.Time
	// InitialLookbackDays sizes the cold start window
	InitialLookbackDays int
	// HistoricalChunkDays sizes each backfill window
	HistoricalChunkDays int
	// RecentHours sizes the incremental window
	RecentHours int

	// PageSize is the search page size
	PageSize int
	// MaxResultsPerRange is the safe per-range ceiling, below the remote hard cap
	MaxResultsPerRange int
	// MaxSplitDepth bounds how often a range may be bisected
	MaxSplitDepth int
	// MinRangeDuration is the duration floor under which ranges are not split
	MinRangeDuration time.Duration
	// MaxPageOffset is the highest offset pagination may reach within a range
	MaxPageOffset int

	// PersistConcurrency is the width of the upsert worker pool
	PersistConcurrency int
	// DetailRatePerSecond and DetailBurst size the per-run token bucket
	// shared by order and shipment detail calls. A rate <= 0 disables it.
	DetailRatePerSecond float64
	DetailBurst         int

	// LeaseTTL is how long an account lease is held when a lease is configured
	LeaseTTL time.Duration
	// TokenRefreshSkew refreshes credentials expiring within this margin
	TokenRefreshSkew time.Duration
	// ArchiveRawPayloads copies raw payloads to the archive after each upsert
	ArchiveRawPayloads bool
	// EventBuffer is the capacity of the progress event channel
	EventBuffer int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		HistoryStart:        time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		InitialLookbackDays: 90,
		HistoricalChunkDays: 30,
		RecentHours:         48,
		PageSize:            50,
		MaxResultsPerRange:  1000,
		MaxSplitDepth:       12,
		MinRangeDuration:    time.Minute,
		MaxPageOffset:       10000,
		PersistConcurrency:  10,
		DetailRatePerSecond: 20,
		DetailBurst:         20,
		LeaseTTL:            30 * time.Minute,
		TokenRefreshSkew:    5 * time.Minute,
		EventBuffer:         256,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch {
	case c.InitialLookbackDays <= 0:
		return fmt.Errorf("%w: initial lookback days must be positive", ErrInvalidConfig)
	case c.HistoricalChunkDays <= 0:
		return fmt.Errorf("%w: historical chunk days must be positive", ErrInvalidConfig)
	case c.RecentHours <= 0:
		return fmt.Errorf("%w: recent hours must be positive", ErrInvalidConfig)
	case c.PageSize <= 0:
		return fmt.Errorf("%w: page size must be positive", ErrInvalidConfig)
	case c.MaxResultsPerRange <= 0:
		return fmt.Errorf("%w: max results per range must be positive", ErrInvalidConfig)
	case c.MaxSplitDepth < 0:
		return fmt.Errorf("%w: max split depth cannot be negative", ErrInvalidConfig)
	case c.MinRangeDuration <= 0:
		return fmt.Errorf("%w: min range duration must be positive", ErrInvalidConfig)
	case c.MaxPageOffset < c.PageSize:
		return fmt.Errorf("%w: max page offset must be at least one page", ErrInvalidConfig)
	case c.PersistConcurrency <= 0:
		return fmt.Errorf("%w: persist concurrency must be positive", ErrInvalidConfig)
	case c.DetailRatePerSecond > 0 && c.DetailBurst <= 0:
		return fmt.Errorf("%w: detail burst must be positive when a rate is set", ErrInvalidConfig)
	case c.EventBuffer <= 0:
		return fmt.Errorf("%w: event buffer must be positive", ErrInvalidConfig)
	}
	return nil
}

// PartitionerConfig returns the partitioner part of the configuration
func (c Config) PartitionerConfig() PartitionerConfig {
	return PartitionerConfig{
		MaxResultsPerRange: c.MaxResultsPerRange,
		MaxSplitDepth:      c.MaxSplitDepth,
		MinRangeDuration:   c.MinRangeDuration,
	}
}
