package ordersync

import (
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
)

// SelectWindows decides which ranges an account needs.
//   - no stored orders: one initial window of InitialLookbackDays, floored at HistoryStart
//   - otherwise: the recent window, always
//   - plus one historical chunk ending at the oldest stored order while it is newer than HistoryStart
//
// Empty ranges are dropped. A zero oldest date counts as unknown.
func SelectWindows(cfg Config, now time.Time, storedCount int64, oldest *time.Time) []integration.SyncWindow {
	var windows []integration.SyncWindow
	add := func(from, to time.Time, mode integration.SyncMode) {
		if from.Before(to) {
			windows = append(windows, integration.SyncWindow{From: from, To: to, Mode: mode})
		}
	}

	if storedCount == 0 {
		from := laterOf(cfg.HistoryStart, now.AddDate(0, 0, -cfg.InitialLookbackDays))
		add(from, now, integration.SyncModeInitial)
		return windows
	}

	add(now.Add(-time.Duration(cfg.RecentHours)*time.Hour), now, integration.SyncModeRecent)

	if oldest != nil && !oldest.IsZero() && oldest.After(cfg.HistoryStart) {
		from := laterOf(cfg.HistoryStart, oldest.AddDate(0, 0, -cfg.HistoricalChunkDays))
		add(from, *oldest, integration.SyncModeHistorical)
	}

	return windows
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
