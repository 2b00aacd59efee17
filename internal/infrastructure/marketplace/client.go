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

// searchTimeLayout is ISO-8601 with millisecond precision in UTC
const searchTimeLayout = "2006-01-02T15:04:05.000Z"

// Client implements integration.MarketplaceClient over the REST API
type Client struct {
	config Config
	http   *RetryingClient
	logger *zap.Logger
}

var _ integration.MarketplaceClient = (*Client)(nil)

// NewClient creates a marketplace client
func NewClient(cfg Config, logger *zap.Logger, opts ...RetryOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("marketplace")
	return &Client{
		config: cfg,
		http:   NewRetryingClient(cfg, logger, opts...),
		logger: logger,
	}, nil
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// SearchOrders returns one page of orders created in [q.From, q.To), newest first
func (c *Client) SearchOrders(ctx context.Context, cred integration.Credential, q integration.OrderSearchQuery) (*integration.OrderSearchPage, error) {
	params := url.Values{}
	params.Set("seller", q.SellerID)
	params.Set("order.date_created.from", formatSearchTime(q.From))
	params.Set("order.date_created.to", formatSearchTime(q.To))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("sort", "date_desc")

	body, err := c.get(ctx, cred, "/orders/search", params)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse search response: %v", integration.ErrPlatformInvalidResponse, err)
	}

	page := &integration.OrderSearchPage{
		Results: make([]integration.RawOrder, 0, len(resp.Results)),
		Total:   resp.Paging.Total,
		Offset:  resp.Paging.Offset,
		Limit:   resp.Paging.Limit,
	}
	for _, o := range resp.Results {
		if o.ID == "" {
			continue
		}
		page.Results = append(page.Results, o)
	}
	return page, nil
}

// GetOrder retrieves the full detail of one order
func (c *Client) GetOrder(ctx context.Context, cred integration.Credential, orderID string) (*integration.RawOrder, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("%w: empty order id", integration.ErrPlatformPermanent)
	}
	body, err := c.get(ctx, cred, "/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	return integration.DecodeRawOrder(body)
}

// GetShipment retrieves the detail of one shipment
func (c *Client) GetShipment(ctx context.Context, cred integration.Credential, shipmentID string) (*integration.RawShipment, error) {
	if strings.TrimSpace(shipmentID) == "" {
		return nil, fmt.Errorf("%w: empty shipment id", integration.ErrPlatformPermanent)
	}
	body, err := c.get(ctx, cred, "/shipments/"+url.PathEscape(shipmentID), nil)
	if err != nil {
		return nil, err
	}
	return integration.DecodeRawShipment(body)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, cred integration.Credential, path string, params url.Values) ([]byte, error) {
	endpoint := c.config.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("marketplace: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if cred.AccessToken != "" {
		req.Header.Set("Authorization", cred.AuthorizationHeader())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	if err := statusError(resp.StatusCode, body); err != nil {
		c.logger.Debug("Marketplace request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return nil, err
	}
	return body, nil
}

// statusError maps a non-2xx status to a platform sentinel error
func statusError(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}

	detail := errorDetail(body)
	var sentinel error
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		sentinel = integration.ErrPlatformAuthFailed
	case code == http.StatusNotFound:
		sentinel = integration.ErrOrderNotFound
	case code == http.StatusTooManyRequests:
		sentinel = integration.ErrPlatformRateLimited
	case code >= 500:
		sentinel = integration.ErrPlatformUnavailable
	default:
		sentinel = integration.ErrPlatformPermanent
	}
	if detail == "" {
		return fmt.Errorf("%w: HTTP %d", sentinel, code)
	}
	return fmt.Errorf("%w: HTTP %d: %s", sentinel, code, detail)
}

// errorDetail extracts the message of an API error body, or a short prefix of it
func errorDetail(body []byte) string {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if msg := apiErr.String(); msg != "" {
			return msg
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func formatSearchTime(t time.Time) string {
	return t.UTC().Format(searchTimeLayout)
}
