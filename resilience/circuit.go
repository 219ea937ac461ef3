package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the store recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures within Window that
	// open the circuit.
	// Default: 5
	FailureThreshold int

	// Window is the sliding window over which failures are counted.
	// Old failures age out, so a slow trickle of errors does not trip
	// the breaker the way a burst does.
	// Default: 10 seconds
	Window time.Duration

	// Cooldown is how long the circuit stays open before allowing a
	// half-open probe. Each failed probe doubles the effective
	// cooldown, up to CooldownCap; a successful probe resets it.
	// Default: 30 seconds
	Cooldown time.Duration

	// CooldownCap bounds cooldown growth.
	// Default: 5 minutes
	CooldownCap time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker implements the circuit breaker pattern with sliding
// window failure accounting.
//
// All state transitions happen under one mutex, so concurrent callers
// observe them atomically. While half-open, exactly one probe token is
// outstanding; every other caller fails fast with ErrCircuitOpen.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures []time.Time // failure timestamps within the window
	cooldown time.Duration
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Window <= 0 {
		config.Window = 10 * time.Second
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.CooldownCap <= 0 {
		config.CooldownCap = 5 * time.Minute
	}
	if config.CooldownCap < config.Cooldown {
		config.CooldownCap = config.Cooldown
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config:   config,
		state:    StateClosed,
		cooldown: config.Cooldown,
	}
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	err := op(ctx)
	cb.Record(err)
	return err
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen
// while the circuit is open, and while half-open for every caller except
// the single probe holder. A caller rejected by Allow must not record an
// outcome.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked(time.Now()) {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

// Record feeds a call outcome into the breaker's accounting, using the
// configured failure classifier.
func (cb *CircuitBreaker) Record(err error) {
	if cb.config.IsFailure(err) {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
}

// RecordSuccess records a successful call. A half-open probe success
// closes the circuit and resets both the failure window and the cooldown.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	if cb.currentStateLocked(now) == StateHalfOpen {
		cb.probing = false
		cb.failures = cb.failures[:0]
		cb.cooldown = cb.config.Cooldown
		cb.setStateLocked(StateClosed)
	}
}

// RecordFailure records a failed call. In the closed state it may trip
// the circuit; in the half-open state it re-opens with a grown cooldown.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	switch cb.currentStateLocked(now) {
	case StateClosed:
		cb.failures = append(cb.failures, now)
		cb.pruneLocked(now)
		if len(cb.failures) >= cb.config.FailureThreshold {
			cb.openedAt = now
			cb.setStateLocked(StateOpen)
		}

	case StateHalfOpen:
		cb.probing = false
		cb.openedAt = now
		cb.cooldown = min(cb.cooldown*2, cb.config.CooldownCap)
		cb.setStateLocked(StateOpen)
	}
}

// Abort releases the half-open probe token without recording an
// outcome. Callers use it when an attempt admitted by Allow fails
// before reaching the remote store (for example, pool exhaustion), so
// a local failure neither closes nor re-opens the circuit.
func (cb *CircuitBreaker) Abort() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked(time.Now())
}

// Reset returns the circuit breaker to the closed state with fresh
// accounting.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = cb.failures[:0]
	cb.cooldown = cb.config.Cooldown
	cb.probing = false
	cb.setStateLocked(StateClosed)
}

// currentStateLocked resolves the effective state, promoting Open to
// HalfOpen once the cooldown has elapsed.
func (cb *CircuitBreaker) currentStateLocked(now time.Time) State {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.cooldown {
		cb.probing = false
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, state)
	}
}

// pruneLocked drops failures that have aged out of the window.
func (cb *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-cb.config.Window)
	i := 0
	for i < len(cb.failures) && cb.failures[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		cb.failures = append(cb.failures[:0], cb.failures[i:]...)
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State    State
	Failures int
	Cooldown time.Duration
	OpenedAt time.Time
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state := cb.currentStateLocked(now)
	cb.pruneLocked(now)
	return CircuitBreakerMetrics{
		State:    state,
		Failures: len(cb.failures),
		Cooldown: cb.cooldown,
		OpenedAt: cb.openedAt,
	}
}
