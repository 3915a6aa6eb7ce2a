// Package ratelimit throttles outbound requests to the registration site.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every gateway call. The registrar
// talks to a single host, so one bucket is enough; concurrent day workers
// all draw from it.
type Limiter struct {
	bucket *rate.Limiter
}

// Config holds rate limiter configuration. MaxRPS <= 0 disables throttling.
type Config struct {
	MaxRPS float64
	Burst  int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.MaxRPS)
	if cfg.MaxRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(r, burst)}
}

// Wait blocks until a token is available, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
