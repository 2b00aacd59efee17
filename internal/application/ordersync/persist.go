package ordersync

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

// batchWriter upserts records with a fixed number of concurrent writers.
// A failing record is reported and never stops the batch.
type batchWriter struct {
	orders      integration.OrderRepository
	archive     integration.RawPayloadArchive
	concurrency int
	logger      *zap.Logger
}

type batchOutcome struct {
	Saved    int
	Failures []integration.SyncError
}

func (w *batchWriter) write(ctx context.Context, accountID uuid.UUID, records []*integration.ReconciledOrderRecord) batchOutcome {
	width := w.concurrency
	if width <= 0 {
		width = 1
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		outcome batchOutcome
		sem     = make(chan struct{}, width)
	)

	for _, rec := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(rec *integration.ReconciledOrderRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			err := w.orders.Upsert(ctx, rec)
			if err == nil {
				w.archiveRaw(ctx, rec)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				w.logger.Error("Failed to persist order",
					zap.String("account_id", accountID.String()),
					zap.String("order_id", rec.OrderID),
					zap.Error(err),
				)
				outcome.Failures = append(outcome.Failures, integration.SyncError{
					AccountID: accountID,
					OrderID:   rec.OrderID,
					Kind:      integration.ErrorKindPersist,
					Message:   err.Error(),
				})
				return
			}
			outcome.Saved++
		}(rec)
	}
	wg.Wait()

	sort.Slice(outcome.Failures, func(i, j int) bool {
		return outcome.Failures[i].OrderID < outcome.Failures[j].OrderID
	})
	return outcome
}

// archiveRaw is best effort: the record is already stored
func (w *batchWriter) archiveRaw(ctx context.Context, rec *integration.ReconciledOrderRecord) {
	if w.archive == nil || len(rec.RawPayload) == 0 {
		return
	}
	if err := w.archive.Archive(ctx, rec.AccountID, rec.OrderID, rec.RawPayload); err != nil {
		w.logger.Warn("Failed to archive raw payload",
			zap.String("order_id", rec.OrderID),
			zap.Error(err),
		)
	}
}
