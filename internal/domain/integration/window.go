package integration

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// SyncMode
// ---------------------------------------------------------------------------

// SyncMode describes why a window is being fetched
type SyncMode string

const (
	// SyncModeInitial is the cold start window of an account with no stored orders
	SyncModeInitial SyncMode = "initial"
	// SyncModeRecent is the incremental window that catches new and updated orders
	SyncModeRecent SyncMode = "recent"
	// SyncModeHistorical is a backfill chunk older than the oldest stored order
	SyncModeHistorical SyncMode = "historical"
	// SyncModeManual fetches an explicit list of order ids
	SyncModeManual SyncMode = "manual"
)

// IsValid returns true if the mode is valid
func (m SyncMode) IsValid() bool {
	switch m {
	case SyncModeInitial, SyncModeRecent, SyncModeHistorical, SyncModeManual:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncMode
func (m SyncMode) String() string {
	return string(m)
}

// ---------------------------------------------------------------------------
// SyncWindow
// ---------------------------------------------------------------------------

// SyncWindow is a half-open [From, To) range of order creation dates selected
// for one run. Manual windows carry no range.
type SyncWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Mode SyncMode  `json:"mode"`
}

// Duration returns the length of the window
func (w SyncWindow) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// Validate checks the window is well formed
func (w SyncWindow) Validate() error {
	if !w.Mode.IsValid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidWindow, w.Mode)
	}
	if w.Mode == SyncModeManual {
		return nil
	}
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidWindow)
	}
	if !w.From.Before(w.To) {
		return fmt.Errorf("%w: from %s is not before to %s", ErrInvalidWindow,
			w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	return nil
}

// String returns a compact description for logs and progress messages
func (w SyncWindow) String() string {
	if w.Mode == SyncModeManual {
		return string(w.Mode)
	}
	return fmt.Sprintf("%s [%s, %s)", w.Mode, w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
}

// ---------------------------------------------------------------------------
// DateRangeWindow
// ---------------------------------------------------------------------------

// DateRangeWindow is a leaf range accepted by the partitioner.
// ObservedCount is at most the range ceiling unless Forced is set, which marks
// acceptance by the depth or duration guard.
type DateRangeWindow struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	ObservedCount int       `json:"observed_count"`
	SplitDepth    int       `json:"split_depth"`
	Forced        bool      `json:"forced,omitempty"`
}

// Duration returns the length of the range
func (w DateRangeWindow) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// Contains reports whether t falls in [From, To)
func (w DateRangeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// String returns a compact description for logs and progress messages
func (w DateRangeWindow) String() string {
	return fmt.Sprintf("[%s, %s) n=%d", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339), w.ObservedCount)
}
