package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

// OAuthRefresher exchanges a refresh token for a new bearer credential
type OAuthRefresher struct {
	config Config
	http   *RetryingClient
	logger *zap.Logger
	now    func() time.Time
}

var _ integration.CredentialRefresher = (*OAuthRefresher)(nil)

// NewOAuthRefresher creates a refresher. ClientID and ClientSecret are required.
func NewOAuthRefresher(cfg Config, logger *zap.Logger, opts ...RetryOption) (*OAuthRefresher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("marketplace: client id and secret are required for credential refresh")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("marketplace.oauth")
	return &OAuthRefresher{
		config: cfg,
		http:   NewRetryingClient(cfg, logger, opts...),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Refresh implements integration.CredentialRefresher
func (r *OAuthRefresher) Refresh(ctx context.Context, account integration.ConnectedAccount) (*integration.Credential, error) {
	if account.RefreshToken == "" {
		return nil, fmt.Errorf("%w: account %s has no refresh token", integration.ErrPlatformAuthFailed, account.ID)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", r.config.ClientID)
	form.Set("client_secret", r.config.ClientSecret)
	form.Set("refresh_token", account.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.BaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("marketplace: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", r.config.UserAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read token response: %v", integration.ErrPlatformUnavailable, err)
	}

	// invalid_grant comes back as 400
	if resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: HTTP 400: %s", integration.ErrPlatformAuthFailed, errorDetail(body))
	}
	if err := statusError(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: failed to parse token response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response without access token", integration.ErrPlatformInvalidResponse)
	}

	cred := &integration.Credential{
		SellerID:     account.SellerID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    r.now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	if token.UserID != 0 {
		cred.SellerID = strconv.FormatInt(token.UserID, 10)
	}

	r.logger.Info("Credential refreshed",
		zap.String("account_id", account.ID.String()),
		zap.Time("expires_at", cred.ExpiresAt),
	)
	return cred, nil
}
