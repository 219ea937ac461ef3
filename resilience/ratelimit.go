package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of operations allowed per second.
	// Default: 100
	Rate float64

	// Burst is the number of operations that may be admitted at once.
	// Default: max(1, Rate/10)
	Burst int

	// Wait makes Execute wait for a token instead of failing fast with
	// ErrRateLimitExceeded.
	Wait bool
}

// RateLimiter paces operations with a token bucket.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = int(config.Rate / 10)
		if config.Burst < 1 {
			config.Burst = 1
		}
	}

	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
	}
}

// Execute runs the operation if the rate limit permits.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.Wait {
		if err := rl.limiter.Wait(ctx); err != nil {
			return err
		}
	} else if !rl.limiter.Allow() {
		return ErrRateLimitExceeded
	}
	return op(ctx)
}

// Allow reports whether one operation may proceed right now.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Config returns the rate limiter configuration.
func (rl *RateLimiter) Config() RateLimiterConfig {
	return rl.config
}
