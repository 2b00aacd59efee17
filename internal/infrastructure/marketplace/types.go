package marketplace

import (
	"github.com/erp/ordersync/internal/domain/integration"
)

// SearchResponse is the body of /orders/search
type SearchResponse struct {
	Results []integration.RawOrder `json:"results"`
	Paging  SearchPaging           `json:"paging"`
}

// SearchPaging is the paging block of a search response. Total is the true
// number of matches even past the offset ceiling.
type SearchPaging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// APIError is the error body returned by the API
type APIError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// String returns the most specific message available
func (e APIError) String() string {
	switch {
	case e.Message != "" && e.Error != "":
		return e.Error + ": " + e.Message
	case e.Message != "":
		return e.Message
	default:
		return e.Error
	}
}

// TokenResponse is the body of a successful /oauth/token call
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}
