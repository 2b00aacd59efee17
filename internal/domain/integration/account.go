package integration

import (
	"time"

	"github.com/google/uuid"
)

// ConnectedAccount is a seller's marketplace connection.
// The sync engine only reads it, except for credential refresh.
type ConnectedAccount struct {
	// ID is the internal account identifier
	ID uuid.UUID
	// SellerID is the remote seller identifier
	SellerID string
	// Nickname is the display name of the seller
	Nickname string
	// AccessToken is the bearer credential
	AccessToken string
	// RefreshToken is used by the credential refresher
	RefreshToken string
	// TokenExpiresAt is when AccessToken stops being accepted
	TokenExpiresAt time.Time
	// Enabled is false for accounts that should not be synced
	Enabled bool
	// CreatedAt is when the connection was onboarded
	CreatedAt time.Time
	// UpdatedAt is when the connection was last modified
	UpdatedAt time.Time
}

// Credential returns the bearer credential of the account
func (a ConnectedAccount) Credential() Credential {
	return Credential{
		SellerID:     a.SellerID,
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		ExpiresAt:    a.TokenExpiresAt,
	}
}

// NeedsRefresh reports whether the token is missing or expires within skew
func (a ConnectedAccount) NeedsRefresh(now time.Time, skew time.Duration) bool {
	if a.AccessToken == "" || a.TokenExpiresAt.IsZero() {
		return true
	}
	return !now.Add(skew).Before(a.TokenExpiresAt)
}

// WithCredential returns a copy of the account carrying the refreshed credential
func (a ConnectedAccount) WithCredential(c Credential) ConnectedAccount {
	a.AccessToken = c.AccessToken
	if c.RefreshToken != "" {
		a.RefreshToken = c.RefreshToken
	}
	a.TokenExpiresAt = c.ExpiresAt
	return a
}

// Credential is the bearer credential used for marketplace calls
type Credential struct {
	SellerID     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthorizationHeader returns the value for the Authorization header
func (c Credential) AuthorizationHeader() string {
	return "Bearer " + c.AccessToken
}
