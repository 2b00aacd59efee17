package ordersync

import (
	"errors"
	"fmt"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
)

// ErrInvalidTransition is returned for a state change the account machine forbids
var ErrInvalidTransition = errors.New("ordersync: invalid account state transition")

// AccountRun tracks one account through pending → fetching ⇄ saving → completed | error
type AccountRun struct {
	Account  integration.ConnectedAccount
	Windows  []integration.SyncWindow
	Totals   integration.SyncTotals
	Failed   int
	Warnings []string

	state     integration.AccountState
	startedAt time.Time
}

func newAccountRun(account integration.ConnectedAccount, now time.Time) *AccountRun {
	return &AccountRun{
		Account:   account,
		state:     integration.AccountStatePending,
		startedAt: now,
	}
}

// State returns the current state
func (r *AccountRun) State() integration.AccountState {
	return r.state
}

// Transition moves to next when allowed. Re-entering the current state is a no-op.
func (r *AccountRun) Transition(next integration.AccountState) error {
	if r.state == next {
		return nil
	}
	if !r.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state, next)
	}
	r.state = next
	return nil
}

// Fail moves to error from any non final state
func (r *AccountRun) Fail() {
	if !r.state.IsFinal() {
		r.state = integration.AccountStateError
	}
}

// Warn records a warning message
func (r *AccountRun) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Summary returns the account summary as of now
func (r *AccountRun) Summary(now time.Time) integration.AccountSummary {
	return integration.AccountSummary{
		AccountID: r.Account.ID,
		SellerID:  r.Account.SellerID,
		Nickname:  r.Account.Nickname,
		State:     r.state,
		Windows:   r.Windows,
		Totals:    r.Totals,
		Failed:    r.Failed,
		Warnings:  r.Warnings,
		Duration:  now.Sub(r.startedAt),
	}
}
