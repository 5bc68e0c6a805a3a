package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited spaces calls to an underlying Generator with a token bucket.
type RateLimited struct {
	inner   Generator
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with the given burst
// (at least 1).
func NewRateLimited(g Generator, perMinute, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   g,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst),
	}
}

// Name implements Generator.
func (r *RateLimited) Name() string {
	return r.inner.Name()
}

// Generate waits for a token, then delegates.
func (r *RateLimited) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.Generate(ctx, req)
}
