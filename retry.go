package transcache

import (
	"context"
	"errors"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries int           // Retries after the first attempt
	BaseDelay  time.Duration // Delay before the first retry; doubles per retry
	MaxDelay   time.Duration // Upper bound for a single delay
}

// DefaultRetryConfig returns the retry settings used by the CLI.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// delay returns the backoff before retry number attempt (0-based).
func (c RetryConfig) delay(attempt int) time.Duration {
	d := c.BaseDelay << attempt
	if d <= 0 || (c.MaxDelay > 0 && d > c.MaxDelay) {
		return c.MaxDelay
	}
	return d
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func() (T, error)

// WithRetry calls fn until it succeeds, fails with an error IsRetryable
// rejects, runs out of retries, or ctx is done.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) || attempt >= cfg.MaxRetries {
			return zero, err
		}

		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// IsRetryable reports whether err is a ProviderError marked retryable.
// Context errors never are.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.Retryable
}

// RetryableProvider wraps a Provider with retry logic. Coalesced callers
// share one retried call, so retries never multiply across waiters.
type RetryableProvider struct {
	provider Provider
	config   RetryConfig
}

// NewRetryableProvider creates a new provider with retry logic.
func NewRetryableProvider(provider Provider, cfg RetryConfig) *RetryableProvider {
	return &RetryableProvider{
		provider: provider,
		config:   cfg,
	}
}

// Translate implements Provider with retry logic.
func (p *RetryableProvider) Translate(ctx context.Context, req ProviderRequest) (*ProviderResponse, error) {
	return WithRetry(ctx, p.config, func() (*ProviderResponse, error) {
		return p.provider.Translate(ctx, req)
	})
}

// DetectLanguage implements Provider with retry logic.
func (p *RetryableProvider) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	return WithRetry(ctx, p.config, func() (*Detection, error) {
		return p.provider.DetectLanguage(ctx, text)
	})
}

// Name returns the wrapped provider's name.
func (p *RetryableProvider) Name() string { return p.provider.Name() }

// Model returns the wrapped provider's model.
func (p *RetryableProvider) Model() string { return p.provider.Model() }

var _ Provider = (*RetryableProvider)(nil)
