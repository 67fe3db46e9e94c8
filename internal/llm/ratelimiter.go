package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitedProvider wraps a Provider with a token bucket rate limiter.
type RateLimitedProvider struct {
	provider Provider
	rpm      int
	mu       sync.Mutex
	tokens   int
	lastFill time.Time
	poll     time.Duration
}

// NewRateLimitedProvider wraps the given provider with a rate limiter
// that allows at most rpm requests per minute. A non-positive rpm returns
// the provider unchanged.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	if rpm <= 0 {
		return provider
	}
	return &RateLimitedProvider{
		provider: provider,
		rpm:      rpm,
		tokens:   rpm,
		lastFill: time.Now(),
		poll:     100 * time.Millisecond,
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

// take refills the bucket and consumes one token if available.
func (r *RateLimitedProvider) take(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	refill := int(now.Sub(r.lastFill).Seconds() * float64(r.rpm) / 60.0)
	if refill > 0 {
		r.tokens = min(r.tokens+refill, r.rpm)
		r.lastFill = now
	}

	if r.tokens == 0 {
		return false
	}
	r.tokens--
	return true
}

func (r *RateLimitedProvider) wait(ctx context.Context) error {
	for !r.take(time.Now()) {
		timer := time.NewTimer(r.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
