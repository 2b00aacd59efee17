package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
)

// MaxManualOrderIDs caps the explicit order ids accepted per account.
// The binding tag on StartSyncRequest carries the same limit.
const MaxManualOrderIDs = 500

// StartSyncRequest is the body of POST /api/v1/sync. Both fields are
// optional; an empty body syncs every connected account.
type StartSyncRequest struct {
	AccountIDs        []string            `json:"account_ids,omitempty" binding:"omitempty,dive,uuid,ne=00000000-0000-0000-0000-000000000000"`
	OrderIDsByAccount map[string][]string `json:"order_ids_by_account,omitempty" binding:"omitempty,dive,keys,uuid,ne=00000000-0000-0000-0000-000000000000,endkeys,max=500,dive,required"`
}

// ToCommand converts a bound request into the orchestrator request.
// Duplicate accounts collapse and blank order ids are dropped.
func (r StartSyncRequest) ToCommand() (ordersync.StartSyncRequest, error) {
	var cmd ordersync.StartSyncRequest

	seen := make(map[uuid.UUID]struct{}, len(r.AccountIDs))
	for _, raw := range r.AccountIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ordersync.StartSyncRequest{}, fmt.Errorf("account id %q: %w", raw, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		cmd.AccountIDs = append(cmd.AccountIDs, id)
	}

	if len(r.OrderIDsByAccount) > 0 {
		cmd.OrderIDsByAccount = make(map[uuid.UUID][]string, len(r.OrderIDsByAccount))
	}
	for rawAccount, orderIDs := range r.OrderIDsByAccount {
		id, err := uuid.Parse(rawAccount)
		if err != nil {
			return ordersync.StartSyncRequest{}, fmt.Errorf("order_ids_by_account key %q: %w", rawAccount, err)
		}
		cleaned := make([]string, 0, len(orderIDs))
		for _, orderID := range orderIDs {
			if orderID = strings.TrimSpace(orderID); orderID != "" {
				cleaned = append(cleaned, orderID)
			}
		}
		cmd.OrderIDsByAccount[id] = cleaned
	}
	return cmd, nil
}

// SyncResultResponse is a SyncResult with its derived status
type SyncResultResponse struct {
	*integration.SyncResult
	Status integration.SyncStatus `json:"status"`
}

// NewSyncResultResponse wraps result for the wire
func NewSyncResultResponse(result *integration.SyncResult) SyncResultResponse {
	return SyncResultResponse{SyncResult: result, Status: result.Status()}
}

// SyncJobResponse describes a scheduler job
type SyncJobResponse struct {
	ID          uuid.UUID                  `json:"id"`
	Trigger     string                     `json:"trigger"`
	Status      string                     `json:"status"`
	Error       string                     `json:"error,omitempty"`
	Request     ordersync.StartSyncRequest `json:"request"`
	CreatedAt   time.Time                  `json:"created_at"`
	StartedAt   *time.Time                 `json:"started_at,omitempty"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
	RetryCount  int                        `json:"retry_count"`
	MaxRetries  int                        `json:"max_retries"`
	NextRetryAt *time.Time                 `json:"next_retry_at,omitempty"`
	Result      *SyncResultResponse        `json:"result,omitempty"`
}
