package integration

import (
	"context"
	"time"
)

// RetryNotice describes an upstream request about to be retried
type RetryNotice struct {
	Method     string
	URL        string
	Attempt    int
	StatusCode int
	Err        error
	Delay      time.Duration
}

// RetryListener is called on the first retry of a request
type RetryListener func(RetryNotice)

type retryListenerKey struct{}

// WithRetryListener returns a context whose outbound requests report their
// first retry to fn
func WithRetryListener(ctx context.Context, fn RetryListener) context.Context {
	return context.WithValue(ctx, retryListenerKey{}, fn)
}

// RetryListenerFrom returns the listener stored in ctx, or nil
func RetryListenerFrom(ctx context.Context) RetryListener {
	fn, _ := ctx.Value(retryListenerKey{}).(RetryListener)
	return fn
}
