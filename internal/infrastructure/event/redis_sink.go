package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

// DefaultProgressChannel is the pub/sub channel progress events are published on
const DefaultProgressChannel = "ordersync:progress"

var (
	// ErrProgressEncode is returned when an event cannot be serialized
	ErrProgressEncode = errors.New("progress: failed to encode event")
	// ErrProgressDecode is returned when a payload is not a progress event
	ErrProgressDecode = errors.New("progress: failed to decode event")
	// ErrProgressPublish is returned when the broker rejects a publish
	ErrProgressPublish = errors.New("progress: failed to publish event")
)

// EncodeProgress serializes an event for the wire
func EncodeProgress(event integration.SyncProgressEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProgressEncode, err)
	}
	return data, nil
}

// DecodeProgress parses a payload produced by EncodeProgress
func DecodeProgress(data []byte) (integration.SyncProgressEvent, error) {
	var event integration.SyncProgressEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return event, fmt.Errorf("%w: %v", ErrProgressDecode, err)
	}
	if event.RunID == "" || !event.Type.IsValid() {
		return event, fmt.Errorf("%w: missing run id or unknown type %q", ErrProgressDecode, event.Type)
	}
	return event, nil
}

// RedisProgressSink publishes progress events to a redis channel so every
// instance behind the load balancer can stream them
type RedisProgressSink struct {
	client  redis.UniversalClient
	channel string
}

var _ integration.ProgressSink = (*RedisProgressSink)(nil)

// NewRedisProgressSink creates a publishing sink. An empty channel uses DefaultProgressChannel.
func NewRedisProgressSink(client redis.UniversalClient, channel string) *RedisProgressSink {
	if channel == "" {
		channel = DefaultProgressChannel
	}
	return &RedisProgressSink{client: client, channel: channel}
}

// Emit implements integration.ProgressSink
func (s *RedisProgressSink) Emit(ctx context.Context, event integration.SyncProgressEvent) error {
	data, err := EncodeProgress(event)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrProgressPublish, err)
	}
	return nil
}

// ProgressRelay forwards events published on a redis channel into a local sink,
// normally the ProgressBroker that feeds SSE clients
type ProgressRelay struct {
	client  redis.UniversalClient
	channel string
	target  integration.ProgressSink
	logger  *zap.Logger
}

// NewProgressRelay creates a relay from channel to target
func NewProgressRelay(client redis.UniversalClient, channel string, target integration.ProgressSink, logger *zap.Logger) *ProgressRelay {
	if channel == "" {
		channel = DefaultProgressChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressRelay{
		client:  client,
		channel: channel,
		target:  target,
		logger:  logger.Named("progress.relay"),
	}
}

// Run subscribes and forwards messages until ctx is cancelled
func (r *ProgressRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("progress: subscribe %s: %w", r.channel, err)
	}

	r.logger.Info("Progress relay subscribed", zap.String("channel", r.channel))
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.forward(ctx, msg.Payload)
		}
	}
}

func (r *ProgressRelay) forward(ctx context.Context, payload string) {
	event, err := DecodeProgress([]byte(payload))
	if err != nil {
		r.logger.Warn("Dropping malformed progress payload", zap.Error(err))
		return
	}
	if err := r.target.Emit(ctx, event); err != nil {
		r.logger.Warn("Failed to forward progress event",
			zap.String("run_id", event.RunID),
			zap.Error(err),
		)
	}
}
