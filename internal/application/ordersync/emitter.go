package ordersync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

// Emitter is the single outbound event queue of one run. Events are numbered
// and timestamped in the order Emit is called and delivered to the sink by one
// dispatcher goroutine. Emit never blocks: when the buffer is full the event
// is dropped.
type Emitter struct {
	ctx    context.Context
	sink   integration.ProgressSink
	logger *zap.Logger
	runID  string
	now    func() time.Time

	mu       sync.Mutex
	seq      uint64
	closed   bool
	events   chan integration.SyncProgressEvent
	done     chan struct{}
	dropped  atomic.Int64
	failures atomic.Int64
}

// NewEmitter starts the dispatcher. ctx is used for sink calls and should
// outlive run cancellation so the terminal event is still delivered.
func NewEmitter(ctx context.Context, sink integration.ProgressSink, runID string, buffer int, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 1
	}
	e := &Emitter{
		ctx:    ctx,
		sink:   sink,
		logger: logger,
		runID:  runID,
		now:    time.Now,
		events: make(chan integration.SyncProgressEvent, buffer),
		done:   make(chan struct{}),
	}
	go e.dispatch()
	return e
}

// Emit queues an event
func (e *Emitter) Emit(ev integration.SyncProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.seq++
	ev.RunID = e.runID
	ev.Sequence = e.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}

	select {
	case e.events <- ev:
	default:
		e.dropped.Add(1)
		e.logger.Warn("Progress event dropped, buffer full",
			zap.String("run_id", e.runID),
			zap.String("type", ev.Type.String()),
			zap.Uint64("sequence", ev.Sequence),
		)
	}
}

// Close stops accepting events and waits until queued events are delivered
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	close(e.events)
	e.mu.Unlock()

	<-e.done
}

// Dropped returns the number of events lost to a full buffer
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

// SinkFailures returns the number of events the sink rejected
func (e *Emitter) SinkFailures() int64 {
	return e.failures.Load()
}

func (e *Emitter) dispatch() {
	defer close(e.done)
	for ev := range e.events {
		if e.sink == nil {
			continue
		}
		if err := e.sink.Emit(e.ctx, ev); err != nil {
			e.failures.Add(1)
			e.logger.Debug("Progress sink rejected event",
				zap.String("run_id", e.runID),
				zap.Uint64("sequence", ev.Sequence),
				zap.Error(err),
			)
		}
	}
}
