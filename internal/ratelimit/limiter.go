// Package ratelimit implements the shared request-interval clock that
// throttles every fetch attempt in a run, regardless of worker count.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/ec-listings-pipeline/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between HTTP requests across all
// workers. It is a single owned resource: construct one per run and
// inject it into every fetcher.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter that admits at most one request per interval.
// A non-positive interval disables throttling.
func New(interval time.Duration) *Limiter {
	r := rate.Inf
	if interval > 0 {
		r = rate.Every(interval)
	}
	return &Limiter{limiter: rate.NewLimiter(r, 1)}
}

// Wait blocks until the next request slot is available, respecting the
// context. Every fetch attempt, including the first for a URL, goes
// through here.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveRateLimitDelay(delay)
	}
	return nil
}
