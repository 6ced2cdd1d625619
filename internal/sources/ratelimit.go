package sources

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket limiter controlling request rates to a
// remote source. Safe for concurrent use; the underlying rate.Limiter is
// goroutine-safe for all operations.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter sustaining ratePerSecond requests
// with the given burst size.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until a request is allowed or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed without waiting, consuming a
// token when it may.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetRate adjusts the sustained rate, keeping the burst size. Useful when a
// source advertises its limits in response headers.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
}

// Tokens returns the number of tokens currently available.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
