package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingKind distinguishes catalog listings from seller-authored ones
type ListingKind string

const (
	ListingKindCatalog     ListingKind = "catalog"
	ListingKindTraditional ListingKind = "traditional"
)

// ReconciledOrderRecord is the unit persisted per (AccountID, OrderID).
// Re-syncing an order updates the same record, never duplicates it.
type ReconciledOrderRecord struct {
	AccountID      uuid.UUID
	OrderID        string
	SyncedAt       time.Time
	OrderCreatedAt time.Time
	Status         string
	BuyerNickname  string

	// Money; fee and freight are signed, costs negative
	GrossAmount  decimal.Decimal
	UnitPrice    decimal.Decimal
	Quantity     int
	PlatformFee  decimal.Decimal
	Freight      decimal.Decimal
	CostOfGoods  *decimal.Decimal
	Margin       decimal.Decimal
	IsRealMargin bool

	// Listing
	Title        string
	SKU          string
	ExposureTier string
	ListingKind  ListingKind

	// Shipment
	LogisticsType       string
	LogisticsTypeSource string
	ShippingMode        string
	ShipmentStatus      string
	ShipmentID          string

	// Freight resolution
	FreightFinalCost    decimal.Decimal
	FreightFinalSource  string
	FreightAdjusted     decimal.Decimal
	FreightRule         string
	FreightRuleLabel    string
	FreightRuleApplied  bool
	FreightLegacyAdjust decimal.Decimal

	OrderTags    []string
	ShipmentTags []string

	// RawPayload is the order and shipment payload kept for audit and replay
	RawPayload json.RawMessage
}

// Validate checks the record carries its unique key
func (r *ReconciledOrderRecord) Validate() error {
	if r.AccountID == uuid.Nil {
		return fmt.Errorf("%w: account id is required", ErrInvalidRecord)
	}
	if r.OrderID == "" {
		return fmt.Errorf("%w: order id is required", ErrInvalidRecord)
	}
	return nil
}

// Key returns the unique key of the record
func (r *ReconciledOrderRecord) Key() string {
	return r.AccountID.String() + ":" + r.OrderID
}
