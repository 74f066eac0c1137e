package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryOptions configures the retrying decorator.
type RetryOptions struct {
	Attempts int           // total attempts per call (default 3)
	Backoff  time.Duration // base delay, doubled per attempt (default 2s)
}

// WithRetry wraps a Client so each call is retried with exponential
// backoff. Resubmitting a chunk is safe: the service is a pure function
// of address content.
func WithRetry(inner Client, opts RetryOptions) Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	return &retryClient{inner: inner, opts: opts}
}

type retryClient struct {
	inner Client
	opts  RetryOptions
}

func (c *retryClient) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	var result *Result
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = c.inner.Geocode(ctx, addr)
		return err
	})
	return result, err
}

func (c *retryClient) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	var results []Result
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		results, err = c.inner.BatchGeocode(ctx, addrs)
		return err
	})
	return results, err
}

func (c *retryClient) do(ctx context.Context, call func(context.Context) error) error {
	delay := c.opts.Backoff
	var lastErr error
	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == c.opts.Attempts {
			break
		}
		zap.L().Debug("geocode retry",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
