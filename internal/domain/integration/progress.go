package integration

import (
	"time"
)

// ProgressEventType discriminates SyncProgressEvent variants
type ProgressEventType string

const (
	ProgressEventStart    ProgressEventType = "start"
	ProgressEventProgress ProgressEventType = "progress"
	ProgressEventWarning  ProgressEventType = "warning"
	ProgressEventComplete ProgressEventType = "complete"
	ProgressEventError    ProgressEventType = "error"
)

// IsValid returns true if the event type is valid
func (t ProgressEventType) IsValid() bool {
	switch t {
	case ProgressEventStart, ProgressEventProgress, ProgressEventWarning,
		ProgressEventComplete, ProgressEventError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event closes a run
func (t ProgressEventType) IsTerminal() bool {
	return t == ProgressEventComplete || t == ProgressEventError
}

// String returns the string representation of ProgressEventType
func (t ProgressEventType) String() string {
	return string(t)
}

// SyncProgressEvent is a structured status update written to a ProgressSink.
// Sequence increases monotonically within a run.
type SyncProgressEvent struct {
	RunID     string            `json:"run_id"`
	Sequence  uint64            `json:"sequence"`
	Type      ProgressEventType `json:"type"`
	Message   string            `json:"message"`
	Fetched   int               `json:"fetched"`
	Expected  int               `json:"expected"`
	Timestamp time.Time         `json:"timestamp"`

	// Optional per-account step detail
	AccountID string           `json:"account_id,omitempty"`
	Step      string           `json:"step,omitempty"`
	Window    *SyncWindow      `json:"window,omitempty"`
	Range     *DateRangeWindow `json:"range,omitempty"`
	OrderID   string           `json:"order_id,omitempty"`
}
