package transcache

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket guarding provider calls.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	RequestsPerMinute int // Sustained rate (default: 60)
	BurstSize         int // Bucket size (default: RequestsPerMinute)
}

// NewRateLimiter creates a rate limiter with a full bucket.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rpm := float64(cfg.RequestsPerMinute)
	if rpm <= 0 {
		rpm = 60
	}
	burst := float64(cfg.BurstSize)
	if burst <= 0 {
		burst = rpm
	}

	return &RateLimiter{
		tokens:     burst,
		maxTokens:  burst,
		refillRate: rpm / 60.0,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is taken or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := r.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token if one is available.
func (r *RateLimiter) TryAcquire() bool {
	_, ok := r.reserve()
	return ok
}

// Available returns the current number of available tokens.
func (r *RateLimiter) Available() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill(time.Now())
	return r.tokens
}

// reserve takes a token, or reports how long until the next one.
func (r *RateLimiter) reserve() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(time.Now())
	if r.tokens >= 1 {
		r.tokens--
		return 0, true
	}

	missing := 1 - r.tokens
	return time.Duration(missing / r.refillRate * float64(time.Second)), false
}

// refill must be called with mu held.
func (r *RateLimiter) refill(now time.Time) {
	r.tokens += now.Sub(r.lastRefill).Seconds() * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = now
}

// RateLimitedProvider wraps a Provider with rate limiting.
type RateLimitedProvider struct {
	provider Provider
	limiter  *RateLimiter
}

// NewRateLimitedProvider creates a new rate-limited provider.
func NewRateLimitedProvider(provider Provider, cfg RateLimitConfig) *RateLimitedProvider {
	return &RateLimitedProvider{
		provider: provider,
		limiter:  NewRateLimiter(cfg),
	}
}

// Translate implements Provider with rate limiting.
func (p *RateLimitedProvider) Translate(ctx context.Context, req ProviderRequest) (*ProviderResponse, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.provider.Translate(ctx, req)
}

// DetectLanguage implements Provider with rate limiting.
func (p *RateLimitedProvider) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.provider.DetectLanguage(ctx, text)
}

// Name returns the wrapped provider's name.
func (p *RateLimitedProvider) Name() string { return p.provider.Name() }

// Model returns the wrapped provider's model.
func (p *RateLimitedProvider) Model() string { return p.provider.Model() }

// Limiter returns the underlying rate limiter for inspection.
func (p *RateLimitedProvider) Limiter() *RateLimiter {
	return p.limiter
}

func (p *RateLimitedProvider) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return &ProviderError{Message: "rate limit wait cancelled", Cause: err}
	}
	return nil
}

var _ Provider = (*RateLimitedProvider)(nil)
