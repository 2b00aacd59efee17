package integration

import "errors"

// ---------------------------------------------------------------------------
// Integration Errors
// ---------------------------------------------------------------------------

var (
	// Platform errors
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformPermanent       = errors.New("integration: platform rejected request")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrOrderNotFound           = errors.New("integration: platform order not found")

	// Sync errors
	ErrPersistenceFailed     = errors.New("integration: persistence failed")
	ErrSyncAlreadyInProgress = errors.New("integration: sync already in progress for account")
	ErrInvalidWindow         = errors.New("integration: invalid sync window")
	ErrAccountNotFound       = errors.New("integration: connected account not found")
	ErrInvalidRecord         = errors.New("integration: invalid reconciled order record")
)

// IsAuthError reports whether err means the credential was rejected
func IsAuthError(err error) bool {
	return errors.Is(err, ErrPlatformAuthFailed)
}

// IsTransient reports whether err is a retryable upstream failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrPlatformRateLimited) ||
		errors.Is(err, ErrPlatformUnavailable) ||
		errors.Is(err, ErrPlatformRequestFailed)
}
