package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/ordersync/internal/domain/integration"
)

// ConnectedAccountModel is the persistence model for integration.ConnectedAccount
type ConnectedAccountModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key"`
	SellerID       string     `gorm:"type:varchar(40);not null;uniqueIndex"`
	Nickname       string     `gorm:"type:varchar(120)"`
	AccessToken    string     `gorm:"type:text"`
	RefreshToken   string     `gorm:"type:text"`
	TokenExpiresAt *time.Time `gorm:"index"`
	Enabled        bool       `gorm:"not null;index"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectedAccountModel) TableName() string {
	return "connected_accounts"
}

// ToDomain converts the persistence model to a domain account
func (m *ConnectedAccountModel) ToDomain() integration.ConnectedAccount {
	a := integration.ConnectedAccount{
		ID:           m.ID,
		SellerID:     m.SellerID,
		Nickname:     m.Nickname,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		Enabled:      m.Enabled,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.TokenExpiresAt != nil {
		a.TokenExpiresAt = *m.TokenExpiresAt
	}
	return a
}

// ConnectedAccountModelFromDomain creates a model from a domain account
func ConnectedAccountModelFromDomain(a integration.ConnectedAccount) *ConnectedAccountModel {
	m := &ConnectedAccountModel{
		ID:           a.ID,
		SellerID:     a.SellerID,
		Nickname:     a.Nickname,
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		Enabled:      a.Enabled,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if !a.TokenExpiresAt.IsZero() {
		expires := a.TokenExpiresAt
		m.TokenExpiresAt = &expires
	}
	return m
}
