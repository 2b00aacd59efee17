package dto

import "net/http"

// Error codes follow ERR_<CATEGORY>_<DESCRIPTION>.
const (
	ErrCodeInternal           = "ERR_INTERNAL"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"

	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeAccountNotFound = "ERR_ACCOUNT_NOT_FOUND"

	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
	ErrCodeQueueFull           = "ERR_QUEUE_FULL"
	ErrCodeMaxConnections      = "ERR_MAX_CONNECTIONS_REACHED"
	ErrCodeSchedulerNotRunning = "ERR_SCHEDULER_NOT_RUNNING"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeAccountNotFound: http.StatusNotFound,

	ErrCodeRateLimited:         http.StatusTooManyRequests,
	ErrCodeQueueFull:           http.StatusServiceUnavailable,
	ErrCodeMaxConnections:      http.StatusServiceUnavailable,
	ErrCodeSchedulerNotRunning: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
