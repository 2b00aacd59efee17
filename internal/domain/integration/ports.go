package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Marketplace Port
// ---------------------------------------------------------------------------

// OrderSearchQuery is one page of a date-bounded order search.
// The range is half-open: [From, To).
type OrderSearchQuery struct {
	SellerID string
	From     time.Time
	To       time.Time
	Offset   int
	Limit    int
}

// OrderSearchPage is one page of search results
type OrderSearchPage struct {
	Results []RawOrder
	// Total is paging.total: the true count of orders matching the range
	Total  int
	Offset int
	Limit  int
}

// MarketplaceClient is the port to the remote marketplace API.
// Implementations map HTTP failures to the platform sentinel errors.
type MarketplaceClient interface {
	// SearchOrders pages through orders created in a date range
	SearchOrders(ctx context.Context, cred Credential, q OrderSearchQuery) (*OrderSearchPage, error)

	// GetOrder retrieves the full detail of one order
	GetOrder(ctx context.Context, cred Credential, orderID string) (*RawOrder, error)

	// GetShipment retrieves the detail of one shipment
	GetShipment(ctx context.Context, cred Credential, shipmentID string) (*RawShipment, error)
}

// CredentialRefresher returns a fresh bearer credential or fails
type CredentialRefresher interface {
	Refresh(ctx context.Context, account ConnectedAccount) (*Credential, error)
}

// ---------------------------------------------------------------------------
// Persistence Ports
// ---------------------------------------------------------------------------

// OrderRepository persists reconciled orders with keyed upserts
type OrderRepository interface {
	// Upsert creates the record or overwrites the one with the same key
	Upsert(ctx context.Context, record *ReconciledOrderRecord) error

	// CountByAccount counts the stored orders of an account
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)

	// OldestOrderDate returns the creation date of the oldest dated order, or nil
	OldestOrderDate(ctx context.Context, accountID uuid.UUID) (*time.Time, error)

	// FindByOrderID returns one stored record
	FindByOrderID(ctx context.Context, accountID uuid.UUID, orderID string) (*ReconciledOrderRecord, error)
}

// AccountRepository reads connected accounts and stores refreshed credentials
type AccountRepository interface {
	// ListEnabled returns every account that should be synced
	ListEnabled(ctx context.Context) ([]ConnectedAccount, error)

	// UpdateCredentials stores a refreshed credential
	UpdateCredentials(ctx context.Context, accountID uuid.UUID, cred Credential) error
}

// CostOfGoodsLookup returns the unit cost of a SKU. The bool is false when no
// cost is registered.
type CostOfGoodsLookup interface {
	UnitCost(ctx context.Context, accountID uuid.UUID, sku string) (decimal.Decimal, bool, error)
}

// RawPayloadArchive stores raw payloads outside the primary store
type RawPayloadArchive interface {
	Archive(ctx context.Context, accountID uuid.UUID, orderID string, payload []byte) error
}

// ---------------------------------------------------------------------------
// Run Coordination Ports
// ---------------------------------------------------------------------------

// ProgressSink receives progress events. Delivery is best effort: an error
// never fails the run.
type ProgressSink interface {
	Emit(ctx context.Context, event SyncProgressEvent) error
}

// SyncLease prevents two runs from syncing the same account at once
type SyncLease interface {
	// Acquire returns false when another run holds the lease
	Acquire(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (bool, error)

	// Release frees the lease
	Release(ctx context.Context, accountID uuid.UUID) error
}
