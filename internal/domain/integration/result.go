package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// AccountState
// ---------------------------------------------------------------------------

// AccountState is the state of one account within a sync run
type AccountState string

const (
	AccountStatePending   AccountState = "pending"
	AccountStateFetching  AccountState = "fetching"
	AccountStateSaving    AccountState = "saving"
	AccountStateCompleted AccountState = "completed"
	AccountStateError     AccountState = "error"
	AccountStateSkipped   AccountState = "skipped"
)

var accountTransitions = map[AccountState][]AccountState{
	AccountStatePending:  {AccountStateFetching, AccountStateError, AccountStateSkipped},
	AccountStateFetching: {AccountStateSaving, AccountStateCompleted, AccountStateError},
	AccountStateSaving:   {AccountStateFetching, AccountStateCompleted, AccountStateError},
}

// CanTransitionTo reports whether the state machine allows moving to next
func (s AccountState) CanTransitionTo(next AccountState) bool {
	for _, allowed := range accountTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsFinal returns true if the state is terminal
func (s AccountState) IsFinal() bool {
	switch s {
	case AccountStateCompleted, AccountStateError, AccountStateSkipped:
		return true
	default:
		return false
	}
}

// String returns the string representation of AccountState
func (s AccountState) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SyncError
// ---------------------------------------------------------------------------

// ErrorKind classifies entries of SyncResult.Errors
type ErrorKind string

const (
	ErrorKindAuth    ErrorKind = "auth"
	ErrorKindFetch   ErrorKind = "fetch"
	ErrorKindPersist ErrorKind = "persist"
	ErrorKindLease   ErrorKind = "lease"
	ErrorKindAccount ErrorKind = "account"
)

// SyncError names the account, and the order when known, a failure belongs to
type SyncError struct {
	AccountID uuid.UUID `json:"account_id"`
	OrderID   string    `json:"order_id,omitempty"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
}

// Error implements the error interface
func (e SyncError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s: account %s order %s: %s", e.Kind, e.AccountID, e.OrderID, e.Message)
	}
	return fmt.Sprintf("%s: account %s: %s", e.Kind, e.AccountID, e.Message)
}

// ---------------------------------------------------------------------------
// SyncResult
// ---------------------------------------------------------------------------

// SyncStatus summarizes a run
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// SyncTotals are the counters of a run or of one account
type SyncTotals struct {
	Expected int `json:"expected"`
	Fetched  int `json:"fetched"`
	Saved    int `json:"saved"`
}

// Add accumulates other into t
func (t *SyncTotals) Add(other SyncTotals) {
	t.Expected += other.Expected
	t.Fetched += other.Fetched
	t.Saved += other.Saved
}

// AccountSummary reports what a run did for one account
type AccountSummary struct {
	AccountID uuid.UUID     `json:"account_id"`
	SellerID  string        `json:"seller_id"`
	Nickname  string        `json:"nickname"`
	State     AccountState  `json:"state"`
	Windows   []SyncWindow  `json:"windows,omitempty"`
	Totals    SyncTotals    `json:"totals"`
	Failed    int           `json:"failed"`
	Warnings  []string      `json:"warnings,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// SyncResult is always returned by a run, including partial failures
type SyncResult struct {
	RunID     uuid.UUID        `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	SyncedAt  time.Time        `json:"synced_at"`
	Accounts  []AccountSummary `json:"accounts"`
	Errors    []SyncError      `json:"errors"`
	Totals    SyncTotals       `json:"totals"`
}

// NewSyncResult creates an empty result for a run starting at now
func NewSyncResult(now time.Time) *SyncResult {
	return &SyncResult{
		RunID:     uuid.New(),
		StartedAt: now,
		Accounts:  []AccountSummary{},
		Errors:    []SyncError{},
	}
}

// AddError records a failure
func (r *SyncResult) AddError(e SyncError) {
	r.Errors = append(r.Errors, e)
}

// AddAccount records an account summary and folds its counters into the totals
func (r *SyncResult) AddAccount(s AccountSummary) {
	r.Accounts = append(r.Accounts, s)
	r.Totals.Add(s.Totals)
}

// ErrorsFor returns the errors recorded for one account
func (r *SyncResult) ErrorsFor(accountID uuid.UUID) []SyncError {
	var out []SyncError
	for _, e := range r.Errors {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}

// Status derives the overall run status
func (r *SyncResult) Status() SyncStatus {
	if len(r.Errors) == 0 {
		return SyncStatusSuccess
	}
	if len(r.Accounts) > 0 && r.AllAccountsFailed() {
		return SyncStatusFailed
	}
	return SyncStatusPartial
}

// AllAccountsFailed reports whether no account reached completed
func (r *SyncResult) AllAccountsFailed() bool {
	for _, a := range r.Accounts {
		if a.State == AccountStateCompleted {
			return false
		}
	}
	return true
}
