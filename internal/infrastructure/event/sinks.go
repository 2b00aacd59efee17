package event

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

// MultiSink writes every event to each of its sinks. A failing or panicking
// sink is logged and never stops delivery to the others.
type MultiSink struct {
	sinks  []integration.ProgressSink
	logger *zap.Logger
}

var _ integration.ProgressSink = (*MultiSink)(nil)

// NewMultiSink creates a fan-out over sinks. Nil sinks are skipped.
func NewMultiSink(logger *zap.Logger, sinks ...integration.ProgressSink) *MultiSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]integration.ProgressSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiSink{sinks: kept, logger: logger.Named("progress.multi")}
}

// Emit implements integration.ProgressSink. It always returns nil.
func (m *MultiSink) Emit(ctx context.Context, event integration.SyncProgressEvent) error {
	for _, sink := range m.sinks {
		if err := m.emitOne(ctx, sink, event); err != nil {
			m.logger.Warn("Progress sink failed",
				zap.String("run_id", event.RunID),
				zap.Uint64("sequence", event.Sequence),
				zap.String("sink", fmt.Sprintf("%T", sink)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (m *MultiSink) emitOne(ctx context.Context, sink integration.ProgressSink, event integration.SyncProgressEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("progress sink panicked: %v", r)
		}
	}()
	return sink.Emit(ctx, event)
}

// LogProgressSink writes progress events to zap. Warnings and errors are
// logged at their own level, everything else at info.
type LogProgressSink struct {
	logger *zap.Logger
}

var _ integration.ProgressSink = (*LogProgressSink)(nil)

// NewLogProgressSink creates a logging sink
func NewLogProgressSink(logger *zap.Logger) *LogProgressSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogProgressSink{logger: logger.Named("progress")}
}

// Emit implements integration.ProgressSink
func (s *LogProgressSink) Emit(_ context.Context, event integration.SyncProgressEvent) error {
	if !event.Type.IsValid() {
		return errors.New("progress: invalid event type " + string(event.Type))
	}

	fields := []zap.Field{
		zap.String("run_id", event.RunID),
		zap.Uint64("sequence", event.Sequence),
		zap.String("type", event.Type.String()),
		zap.Int("fetched", event.Fetched),
		zap.Int("expected", event.Expected),
	}
	if event.AccountID != "" {
		fields = append(fields, zap.String("account_id", event.AccountID))
	}
	if event.Step != "" {
		fields = append(fields, zap.String("step", event.Step))
	}
	if event.OrderID != "" {
		fields = append(fields, zap.String("order_id", event.OrderID))
	}
	if event.Range != nil {
		fields = append(fields,
			zap.Time("range_from", event.Range.From),
			zap.Time("range_to", event.Range.To),
		)
	}

	switch event.Type {
	case integration.ProgressEventWarning:
		s.logger.Warn(event.Message, fields...)
	case integration.ProgressEventError:
		s.logger.Error(event.Message, fields...)
	default:
		s.logger.Info(event.Message, fields...)
	}
	return nil
}
