package marketplace

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production API endpoint
	DefaultBaseURL = "https://api.mercadolibre.com"

	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultRetryBase   = time.Second
	defaultMaxJitter   = time.Second
	defaultUserAgent   = "ordersync/1.0"

	// maxResponseSize is the maximum allowed response size (10MB)
	maxResponseSize = 10 * 1024 * 1024
)

// Errors for marketplace configuration
var (
	ErrConfigMissingBaseURL = errors.New("marketplace: base url is required")
	ErrConfigInvalidBaseURL = errors.New("marketplace: base url must be http or https")
)

// Config holds the marketplace API settings
type Config struct {
	// BaseURL is the API root, without trailing slash
	BaseURL string
	// Timeout bounds a single HTTP attempt
	Timeout time.Duration
	// MaxAttempts is the total number of attempts for a retryable request
	MaxAttempts int
	// RetryBase is the first backoff delay; it doubles on every retry
	RetryBase time.Duration
	// MaxJitter is the upper bound of the random delay added to each backoff
	MaxJitter time.Duration
	// ClientID and ClientSecret authenticate credential refreshes
	ClientID     string
	ClientSecret string
	// UserAgent is sent on every request
	UserAgent string
}

// DefaultConfig returns the production configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Timeout:     defaultTimeout,
		MaxAttempts: defaultMaxAttempts,
		RetryBase:   defaultRetryBase,
		MaxJitter:   defaultMaxJitter,
		UserAgent:   defaultUserAgent,
	}
}

// Validate validates the configuration and fills unset values with defaults
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return ErrConfigInvalidBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBase <= 0 {
		c.RetryBase = defaultRetryBase
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return nil
}
