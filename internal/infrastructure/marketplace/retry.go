package marketplace

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
)

// RetryingClient sends requests with bounded exponential backoff.
// Auth failures are returned at once; 429 and 5xx gateway statuses and
// transport errors are retried.
type RetryingClient struct {
	http        *http.Client
	maxAttempts int
	base        time.Duration
	maxJitter   time.Duration
	logger      *zap.Logger
	retries     *telemetry.Counter

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
}

// RetryOption configures a RetryingClient
type RetryOption func(*RetryingClient)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) RetryOption {
	return func(r *RetryingClient) { r.http = c }
}

// WithRetryCounter counts retries by status
func WithRetryCounter(c *telemetry.Counter) RetryOption {
	return func(r *RetryingClient) { r.retries = c }
}

// WithSleep replaces the backoff sleep
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *RetryingClient) { r.sleep = fn }
}

// WithJitter replaces the jitter source
func WithJitter(fn func(limit time.Duration) time.Duration) RetryOption {
	return func(r *RetryingClient) { r.jitter = fn }
}

// NewRetryingClient creates a retrying client from a validated config
func NewRetryingClient(cfg Config, logger *zap.Logger, opts ...RetryOption) *RetryingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	c := &RetryingClient{
		http:        &http.Client{Timeout: cfg.Timeout},
		maxAttempts: maxAttempts,
		base:        cfg.RetryBase,
		maxJitter:   cfg.MaxJitter,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
		jitter:      randomJitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req until it succeeds, fails permanently or attempts run out.
// Once attempts are exhausted on a retryable status the last response is
// returned; a transport error on the last attempt wraps ErrPlatformUnavailable.
func (c *RetryingClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("marketplace: rewind request body: %w", err)
			}
			req.Body = body
		}

		start := c.now()
		resp, err := c.http.Do(req)
		latency := c.now().Sub(start)
		last := attempt+1 >= c.maxAttempts

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if last {
				return nil, fmt.Errorf("%w: %s %s: %v", integration.ErrPlatformUnavailable, req.Method, req.URL.Path, err)
			}
			if err := c.backoff(ctx, req, attempt, 0, err); err != nil {
				return nil, err
			}
			continue
		}

		c.logger.Debug("Marketplace response",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.Duration("latency", latency),
		)

		if !isRetryableStatus(resp.StatusCode) || last {
			return resp, nil
		}

		_ = drainAndClose(resp.Body)
		if err := c.backoff(ctx, req, attempt, resp.StatusCode, nil); err != nil {
			return nil, err
		}
	}
}

// backoff waits base·2^attempt plus jitter. The first retry of a request is
// reported to the listener carried by ctx.
func (c *RetryingClient) backoff(ctx context.Context, req *http.Request, attempt, status int, cause error) error {
	delay := c.base<<uint(attempt) + c.jitter(c.maxJitter)

	if attempt == 0 {
		if fn := integration.RetryListenerFrom(ctx); fn != nil {
			fn(integration.RetryNotice{
				Method:     req.Method,
				URL:        req.URL.Redacted(),
				Attempt:    attempt + 1,
				StatusCode: status,
				Err:        cause,
				Delay:      delay,
			})
		}
	}
	if c.retries != nil {
		c.retries.Inc(ctx, telemetry.AttrHTTPStatus.Int(status))
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("attempt", attempt+1),
		zap.Duration("retry_in", delay),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	} else {
		fields = append(fields, zap.Int("status", status))
	}
	c.logger.Warn("Marketplace request failed, retrying", fields...)

	return c.sleep(ctx, delay)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit + 1)
}

func drainAndClose(rc io.ReadCloser) error {
	if rc == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxResponseSize))
	return rc.Close()
}
