package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

// DefaultSubscriberBuffer is the channel capacity of a subscriber
const DefaultSubscriberBuffer = 64

// Subscription receives progress events from a ProgressBroker
type Subscription struct {
	ID string
	C  <-chan integration.SyncProgressEvent

	ch      chan integration.SyncProgressEvent
	dropped atomic.Uint64
}

// Dropped returns how many events this subscriber missed because it was full
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// ProgressBroker fans progress events out to in-process subscribers.
// Sends never block: a full subscriber loses the event.
type ProgressBroker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	buffer      int
	logger      *zap.Logger
	closed      bool
}

var _ integration.ProgressSink = (*ProgressBroker)(nil)

// NewProgressBroker creates a broker whose subscribers buffer up to buffer events
func NewProgressBroker(buffer int, logger *zap.Logger) *ProgressBroker {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressBroker{
		subscribers: make(map[string]*Subscription),
		buffer:      buffer,
		logger:      logger.Named("progress.broker"),
	}
}

// Subscribe registers a new subscriber. Call Unsubscribe when done.
// After Close it returns a subscription whose channel is already closed.
func (b *ProgressBroker) Subscribe() *Subscription {
	ch := make(chan integration.SyncProgressEvent, b.buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes the subscriber and closes its channel
func (b *ProgressBroker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// SubscriberCount returns the number of active subscribers
func (b *ProgressBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Emit implements integration.ProgressSink
func (b *ProgressBroker) Emit(_ context.Context, event integration.SyncProgressEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			if sub.dropped.Add(1) == 1 {
				b.logger.Warn("Progress subscriber is full, dropping events",
					zap.String("subscriber_id", sub.ID),
					zap.String("run_id", event.RunID),
				)
			}
		}
	}
	return nil
}

// Close closes every subscriber channel. Later Emits are no-ops.
func (b *ProgressBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}
