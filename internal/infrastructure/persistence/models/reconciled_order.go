package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/ordersync/internal/domain/integration"
)

// ReconciledOrderModel is the persistence model for integration.ReconciledOrderRecord.
// One row per (account_id, order_id).
type ReconciledOrderModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	AccountID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reconciled_orders_account_order,priority:1;index:idx_reconciled_orders_account_created,priority:1"`
	OrderID        string    `gorm:"type:varchar(40);not null;uniqueIndex:idx_reconciled_orders_account_order,priority:2"`
	SyncedAt       time.Time `gorm:"not null"`
	OrderCreatedAt time.Time `gorm:"not null;index:idx_reconciled_orders_account_created,priority:2"`
	Status         string    `gorm:"type:varchar(40)"`
	BuyerNickname  string    `gorm:"type:varchar(120)"`

	GrossAmount  decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	UnitPrice    decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	Quantity     int                 `gorm:"not null;default:0"`
	PlatformFee  decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	Freight      decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	CostOfGoods  decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	Margin       decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	IsRealMargin bool                `gorm:"not null;default:false"`

	Title        string `gorm:"type:varchar(255)"`
	SKU          string `gorm:"column:sku;type:varchar(100);index"`
	ExposureTier string `gorm:"type:varchar(40)"`
	ListingKind  string `gorm:"type:varchar(20)"`

	LogisticsType       string `gorm:"type:varchar(40)"`
	LogisticsTypeSource string `gorm:"type:varchar(20)"`
	ShippingMode        string `gorm:"type:varchar(20)"`
	ShipmentStatus      string `gorm:"type:varchar(40)"`
	ShipmentID          string `gorm:"type:varchar(40)"`

	FreightFinalCost    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	FreightFinalSource  string          `gorm:"type:varchar(40)"`
	FreightAdjusted     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	FreightRule         string          `gorm:"type:varchar(40)"`
	FreightRuleLabel    string          `gorm:"type:varchar(80)"`
	FreightRuleApplied  bool            `gorm:"not null;default:false"`
	FreightLegacyAdjust decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`

	OrderTags    []string `gorm:"type:jsonb;serializer:json"`
	ShipmentTags []string `gorm:"type:jsonb;serializer:json"`
	RawPayload   string   `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReconciledOrderModel) TableName() string {
	return "reconciled_orders"
}

// ReconciledOrderMutableColumns lists every column an upsert overwrites.
// id and created_at keep the values of the first insert.
var ReconciledOrderMutableColumns = []string{
	"synced_at", "order_created_at", "status", "buyer_nickname",
	"gross_amount", "unit_price", "quantity", "platform_fee", "freight",
	"cost_of_goods", "margin", "is_real_margin",
	"title", "sku", "exposure_tier", "listing_kind",
	"logistics_type", "logistics_type_source", "shipping_mode", "shipment_status", "shipment_id",
	"freight_final_cost", "freight_final_source", "freight_adjusted",
	"freight_rule", "freight_rule_label", "freight_rule_applied", "freight_legacy_adjust",
	"order_tags", "shipment_tags", "raw_payload", "updated_at",
}

// ToDomain converts the persistence model to a domain record
func (m *ReconciledOrderModel) ToDomain() *integration.ReconciledOrderRecord {
	r := &integration.ReconciledOrderRecord{
		AccountID:           m.AccountID,
		OrderID:             m.OrderID,
		SyncedAt:            m.SyncedAt,
		OrderCreatedAt:      m.OrderCreatedAt,
		Status:              m.Status,
		BuyerNickname:       m.BuyerNickname,
		GrossAmount:         m.GrossAmount,
		UnitPrice:           m.UnitPrice,
		Quantity:            m.Quantity,
		PlatformFee:         m.PlatformFee,
		Freight:             m.Freight,
		Margin:              m.Margin,
		IsRealMargin:        m.IsRealMargin,
		Title:               m.Title,
		SKU:                 m.SKU,
		ExposureTier:        m.ExposureTier,
		ListingKind:         integration.ListingKind(m.ListingKind),
		LogisticsType:       m.LogisticsType,
		LogisticsTypeSource: m.LogisticsTypeSource,
		ShippingMode:        m.ShippingMode,
		ShipmentStatus:      m.ShipmentStatus,
		ShipmentID:          m.ShipmentID,
		FreightFinalCost:    m.FreightFinalCost,
		FreightFinalSource:  m.FreightFinalSource,
		FreightAdjusted:     m.FreightAdjusted,
		FreightRule:         m.FreightRule,
		FreightRuleLabel:    m.FreightRuleLabel,
		FreightRuleApplied:  m.FreightRuleApplied,
		FreightLegacyAdjust: m.FreightLegacyAdjust,
		OrderTags:           m.OrderTags,
		ShipmentTags:        m.ShipmentTags,
	}
	if m.CostOfGoods.Valid {
		cogs := m.CostOfGoods.Decimal
		r.CostOfGoods = &cogs
	}
	if m.RawPayload != "" && m.RawPayload != "null" {
		r.RawPayload = json.RawMessage(m.RawPayload)
	}
	return r
}

// ReconciledOrderModelFromDomain creates a model from a domain record.
// The caller assigns ID and timestamps.
func ReconciledOrderModelFromDomain(r *integration.ReconciledOrderRecord) *ReconciledOrderModel {
	m := &ReconciledOrderModel{
		AccountID:           r.AccountID,
		OrderID:             r.OrderID,
		SyncedAt:            r.SyncedAt,
		OrderCreatedAt:      r.OrderCreatedAt,
		Status:              r.Status,
		BuyerNickname:       r.BuyerNickname,
		GrossAmount:         r.GrossAmount,
		UnitPrice:           r.UnitPrice,
		Quantity:            r.Quantity,
		PlatformFee:         r.PlatformFee,
		Freight:             r.Freight,
		Margin:              r.Margin,
		IsRealMargin:        r.IsRealMargin,
		Title:               r.Title,
		SKU:                 r.SKU,
		ExposureTier:        r.ExposureTier,
		ListingKind:         string(r.ListingKind),
		LogisticsType:       r.LogisticsType,
		LogisticsTypeSource: r.LogisticsTypeSource,
		ShippingMode:        r.ShippingMode,
		ShipmentStatus:      r.ShipmentStatus,
		ShipmentID:          r.ShipmentID,
		FreightFinalCost:    r.FreightFinalCost,
		FreightFinalSource:  r.FreightFinalSource,
		FreightAdjusted:     r.FreightAdjusted,
		FreightRule:         r.FreightRule,
		FreightRuleLabel:    r.FreightRuleLabel,
		FreightRuleApplied:  r.FreightRuleApplied,
		FreightLegacyAdjust: r.FreightLegacyAdjust,
		OrderTags:           r.OrderTags,
		ShipmentTags:        r.ShipmentTags,
		RawPayload:          "null",
	}
	if r.CostOfGoods != nil {
		m.CostOfGoods = decimal.NewNullDecimal(*r.CostOfGoods)
	}
	if len(r.RawPayload) > 0 {
		m.RawPayload = string(r.RawPayload)
	}
	return m
}
