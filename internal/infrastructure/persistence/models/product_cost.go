package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductCostModel is the unit cost of goods of one SKU of an account
type ProductCostModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	AccountID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_costs_account_sku,priority:1"`
	SKU       string          `gorm:"column:sku;type:varchar(100);not null;uniqueIndex:idx_product_costs_account_sku,priority:2"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductCostModel) TableName() string {
	return "product_costs"
}
