package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
)

// GormReconciledOrderRepository implements integration.OrderRepository using GORM
type GormReconciledOrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ integration.OrderRepository = (*GormReconciledOrderRepository)(nil)

// NewGormReconciledOrderRepository creates a new reconciled order repository
func NewGormReconciledOrderRepository(db *gorm.DB) *GormReconciledOrderRepository {
	return &GormReconciledOrderRepository{db: db, now: time.Now}
}

// WithTx returns a new repository with the given transaction
func (r *GormReconciledOrderRepository) WithTx(tx *gorm.DB) *GormReconciledOrderRepository {
	return &GormReconciledOrderRepository{db: tx, now: r.now}
}

// Upsert inserts the record or overwrites the row with the same (account_id, order_id)
func (r *GormReconciledOrderRepository) Upsert(ctx context.Context, record *integration.ReconciledOrderRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", integration.ErrInvalidRecord)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	model := models.ReconciledOrderModelFromDomain(record)
	now := r.now()
	model.ID = uuid.New()
	model.CreatedAt = now
	model.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns(models.ReconciledOrderMutableColumns),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("%w: upsert order %s: %v", integration.ErrPersistenceFailed, record.OrderID, err)
	}
	return nil
}

// CountByAccount counts the stored orders of an account
func (r *GormReconciledOrderRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReconciledOrderModel{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count orders: %v", integration.ErrPersistenceFailed, err)
	}
	return count, nil
}

// undatedBefore marks creation dates that were missing or unparseable upstream
var undatedBefore = time.Unix(0, 0).UTC()

// OldestOrderDate returns the creation date of the oldest stored order, or nil
// when the account has none. Undated orders are skipped.
func (r *GormReconciledOrderRepository) OldestOrderDate(ctx context.Context, accountID uuid.UUID) (*time.Time, error) {
	var dates []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.ReconciledOrderModel{}).
		Where("account_id = ? AND order_created_at > ?", accountID, undatedBefore).
		Order("order_created_at ASC").
		Limit(1).
		Pluck("order_created_at", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("%w: oldest order date: %v", integration.ErrPersistenceFailed, err)
	}
	if len(dates) == 0 {
		return nil, nil
	}
	oldest := dates[0].UTC()
	return &oldest, nil
}

// FindByOrderID returns one stored record
func (r *GormReconciledOrderRepository) FindByOrderID(ctx context.Context, accountID uuid.UUID, orderID string) (*integration.ReconciledOrderRecord, error) {
	var model models.ReconciledOrderModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND order_id = ?", accountID, orderID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: find order %s: %v", integration.ErrPersistenceFailed, orderID, err)
	}
	return model.ToDomain(), nil
}
