package ordersync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

// RangeCounter returns the true number of orders created in [from, to)
type RangeCounter interface {
	Count(ctx context.Context, from, to time.Time) (int, error)
}

// RangeCounterFunc adapts a function to RangeCounter
type RangeCounterFunc func(ctx context.Context, from, to time.Time) (int, error)

// Count implements RangeCounter
func (f RangeCounterFunc) Count(ctx context.Context, from, to time.Time) (int, error) {
	return f(ctx, from, to)
}

// PartitionerConfig holds the ceiling and the termination guards
type PartitionerConfig struct {
	MaxResultsPerRange int
	MaxSplitDepth      int
	MinRangeDuration   time.Duration
}

// Partitioner splits a date range until every leaf fits under the range ceiling
type Partitioner struct {
	cfg    PartitionerConfig
	logger *zap.Logger
}

// NewPartitioner creates a partitioner
func NewPartitioner(cfg PartitionerConfig, logger *zap.Logger) *Partitioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Partitioner{cfg: cfg, logger: logger}
}

// PartitionOption configures one Partition call
type PartitionOption func(*partitionOptions)

type partitionOptions struct {
	onForced func(integration.DateRangeWindow)
}

// WithForcedRangeObserver is called for every leaf accepted by a guard while
// still above the ceiling
func WithForcedRangeObserver(fn func(integration.DateRangeWindow)) PartitionOption {
	return func(o *partitionOptions) {
		o.onForced = fn
	}
}

// Partition returns leaf ranges tiling [from, to), newest first. Empty ranges
// are dropped. A leaf holds at most MaxResultsPerRange orders unless Forced is
// set. At most 2^(MaxSplitDepth+1)-1 count queries are issued.
func (p *Partitioner) Partition(
	ctx context.Context,
	counter RangeCounter,
	from, to time.Time,
	opts ...PartitionOption,
) ([]integration.DateRangeWindow, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: partition range is empty", integration.ErrInvalidWindow)
	}

	var options partitionOptions
	for _, opt := range opts {
		opt(&options)
	}

	// LIFO: the newer half is pushed last so it is counted first
	stack := []integration.DateRangeWindow{{From: from, To: to}}
	var leaves []integration.DateRangeWindow

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		count, err := counter.Count(ctx, w.From, w.To)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", w, err)
		}
		w.ObservedCount = count

		switch {
		case count == 0:
			continue
		case count <= p.cfg.MaxResultsPerRange:
			leaves = append(leaves, w)
		case p.canSplit(w):
			mid := midpoint(w)
			stack = append(stack,
				integration.DateRangeWindow{From: w.From, To: mid, SplitDepth: w.SplitDepth + 1},
				integration.DateRangeWindow{From: mid, To: w.To, SplitDepth: w.SplitDepth + 1},
			)
		default:
			w.Forced = true
			p.logger.Warn("Accepting range above ceiling, orders may be left unfetched",
				zap.Time("from", w.From),
				zap.Time("to", w.To),
				zap.Int("observed_count", count),
				zap.Int("ceiling", p.cfg.MaxResultsPerRange),
				zap.Int("split_depth", w.SplitDepth),
			)
			if options.onForced != nil {
				options.onForced(w)
			}
			leaves = append(leaves, w)
		}
	}

	sort.Slice(leaves, func(i, j int) bool {
		return leaves[i].From.After(leaves[j].From)
	})
	return leaves, nil
}

// canSplit applies the depth and duration guards. A midpoint collapsing onto
// a bound counts as reaching the duration floor.
func (p *Partitioner) canSplit(w integration.DateRangeWindow) bool {
	if w.SplitDepth >= p.cfg.MaxSplitDepth {
		return false
	}
	if w.Duration() <= p.cfg.MinRangeDuration {
		return false
	}
	mid := midpoint(w)
	return mid.After(w.From) && mid.Before(w.To)
}

func midpoint(w integration.DateRangeWindow) time.Time {
	return w.From.Add(w.Duration() / 2)
}
