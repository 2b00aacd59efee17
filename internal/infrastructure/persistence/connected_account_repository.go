package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
)

// GormConnectedAccountRepository implements integration.AccountRepository using GORM
type GormConnectedAccountRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ integration.AccountRepository = (*GormConnectedAccountRepository)(nil)

// NewGormConnectedAccountRepository creates a new connected account repository
func NewGormConnectedAccountRepository(db *gorm.DB) *GormConnectedAccountRepository {
	return &GormConnectedAccountRepository{db: db, now: time.Now}
}

// ListEnabled returns every enabled account, oldest connection first
func (r *GormConnectedAccountRepository) ListEnabled(ctx context.Context) ([]integration.ConnectedAccount, error) {
	var rows []models.ConnectedAccountModel
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", integration.ErrPersistenceFailed, err)
	}

	accounts := make([]integration.ConnectedAccount, len(rows))
	for i := range rows {
		accounts[i] = rows[i].ToDomain()
	}
	return accounts, nil
}

// FindByID returns one account
func (r *GormConnectedAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ConnectedAccount, error) {
	var model models.ConnectedAccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: find account: %v", integration.ErrPersistenceFailed, err)
	}
	account := model.ToDomain()
	return &account, nil
}

// Save creates or replaces an account
func (r *GormConnectedAccountRepository) Save(ctx context.Context, account integration.ConnectedAccount) error {
	now := r.now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	if err := r.db.WithContext(ctx).Save(models.ConnectedAccountModelFromDomain(account)).Error; err != nil {
		return fmt.Errorf("%w: save account: %v", integration.ErrPersistenceFailed, err)
	}
	return nil
}

// UpdateCredentials stores a refreshed credential. An empty refresh token
// keeps the stored one.
func (r *GormConnectedAccountRepository) UpdateCredentials(ctx context.Context, accountID uuid.UUID, cred integration.Credential) error {
	updates := map[string]any{
		"access_token":     cred.AccessToken,
		"token_expires_at": cred.ExpiresAt,
		"updated_at":       r.now(),
	}
	if cred.RefreshToken != "" {
		updates["refresh_token"] = cred.RefreshToken
	}

	result := r.db.WithContext(ctx).
		Model(&models.ConnectedAccountModel{}).
		Where("id = ?", accountID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("%w: update credentials: %v", integration.ErrPersistenceFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return integration.ErrAccountNotFound
	}
	return nil
}
