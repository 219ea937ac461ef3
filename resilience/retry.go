package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// BaseBackoff is the delay before the first retry.
	// Default: 100ms
	BaseBackoff time.Duration

	// BackoffCap caps the delay between retries.
	// Default: 30s
	BackoffCap time.Duration

	// NoJitter disables the randomized delay variance. Jitter is on by
	// default to prevent synchronized retry storms across callers.
	NoJitter bool

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors trigger retry.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry implements retry with exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = 100 * time.Millisecond
	}
	if config.BackoffCap <= 0 {
		config.BackoffCap = 30 * time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}

	return &Retry{config: config}
}

// Execute runs the operation with retry logic.
//
// Only errors matching RetryIf are retried, and ErrCircuitOpen is never
// retried regardless of the classifier: when the breaker is gating there
// is no point hammering it. If the backoff before the next attempt would
// overrun the context deadline, Execute aborts early and surfaces the
// last attempt's error rather than sleeping into certain failure.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) {
			return err
		}
		if !r.config.RetryIf(err) {
			return err
		}
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		delay := Backoff(attempt, r.config.BaseBackoff, r.config.BackoffCap, !r.config.NoJitter)

		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(delay).After(deadline) {
			return lastErr
		}

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}

	return lastErr
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Backoff computes the delay before retrying after the given zero-based
// attempt index: min(base<<attempt, cap), with up to 25% added jitter
// when enabled. It is a pure function of its inputs (modulo the jitter
// draw), which keeps the schedule directly testable.
func Backoff(attempt int, base, capDelay time.Duration, jitter bool) time.Duration {
	if base <= 0 {
		return 0
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= capDelay {
			delay = capDelay
			break
		}
	}
	if delay > capDelay {
		delay = capDelay
	}

	if jitter && delay > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay/4) + 1))
	}

	return delay
}
