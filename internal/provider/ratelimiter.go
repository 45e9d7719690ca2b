package provider

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests to a single endpoint.
type RateLimiter struct {
	limiter *rate.Limiter
	name    string
}

// NewRateLimiter allows rps requests per second with burst 1. rps <= 0 disables limiting.
func NewRateLimiter(name string, rps int) *RateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	slog.Debug("rate limiter created", "endpoint", name, "rps", rps)
	return &RateLimiter{
		// Burst 1 spreads requests across the second; public RPC nodes throttle bursts
		// even when the average rate is within limits.
		limiter: rate.NewLimiter(limit, 1),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows another request or ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		slog.Debug("rate limiter wait cancelled", "endpoint", rl.name, "error", err)
		return err
	}
	return nil
}

// Name returns the endpoint name this limiter is associated with.
func (rl *RateLimiter) Name() string {
	return rl.name
}
