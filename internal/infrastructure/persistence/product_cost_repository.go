package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
)

// GormProductCostRepository stores unit costs of goods and implements
// integration.CostOfGoodsLookup
type GormProductCostRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ integration.CostOfGoodsLookup = (*GormProductCostRepository)(nil)

// NewGormProductCostRepository creates a new product cost repository
func NewGormProductCostRepository(db *gorm.DB) *GormProductCostRepository {
	return &GormProductCostRepository{db: db, now: time.Now}
}

// UnitCost returns the registered unit cost of a SKU. The bool is false when
// the SKU has no cost.
func (r *GormProductCostRepository) UnitCost(ctx context.Context, accountID uuid.UUID, sku string) (decimal.Decimal, bool, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return decimal.Zero, false, nil
	}

	var model models.ProductCostModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND sku = ?", accountID, sku).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("%w: unit cost of %s: %v", integration.ErrPersistenceFailed, sku, err)
	}
	return model.UnitCost, true, nil
}

// SetUnitCost registers or replaces the unit cost of a SKU
func (r *GormProductCostRepository) SetUnitCost(ctx context.Context, accountID uuid.UUID, sku string, cost decimal.Decimal) error {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return fmt.Errorf("%w: sku is required", integration.ErrInvalidRecord)
	}
	if cost.IsNegative() {
		return fmt.Errorf("%w: unit cost cannot be negative", integration.ErrInvalidRecord)
	}

	now := r.now()
	model := &models.ProductCostModel{
		ID:        uuid.New(),
		AccountID: accountID,
		SKU:       sku,
		UnitCost:  cost,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{"unit_cost", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("%w: set unit cost of %s: %v", integration.ErrPersistenceFailed, sku, err)
	}
	return nil
}
