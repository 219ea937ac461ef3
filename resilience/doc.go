// Package resilience provides the failure-isolation patterns that guard
// calls to the remote vector store.
//
// # Patterns
//
//   - Circuit Breaker: stops sending calls to a failing store after the
//     failure threshold is crossed within a sliding window, then probes
//     recovery with a single half-open trial call. Repeated failed probes
//     grow the cooldown exponentially up to a cap.
//
//   - Retry: re-attempts transient failures with exponential backoff and
//     jitter, bounded by both a maximum attempt count and the caller's
//     deadline. A retry loop short-circuits when the breaker is open.
//
//   - Rate Limiter: paces outbound requests using a token bucket so a
//     recovering store is not flooded.
//
//   - Timeout: enforces a per-call deadline.
//
// # Usage
//
// Each pattern can be used independently or composed together:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    Window:           10 * time.Second,
//	    Cooldown:         30 * time.Second,
//	})
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts: 3,
//	    BaseBackoff: 100 * time.Millisecond,
//	    BackoffCap:  5 * time.Second,
//	    RetryIf:     store.Retryable,
//	})
//
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(2*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return callStore(ctx)
//	})
//
// The breaker also exposes Allow/RecordSuccess/RecordFailure so passive
// probes (the health monitor) share the exact accounting used by live
// traffic.
package resilience
