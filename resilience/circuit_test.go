package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func tripBreaker(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.RecordFailure()
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		Window:           time.Second,
		Cooldown:         time.Minute,
	})

	tripBreaker(cb, 2)
	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() after 2 failures = %v, want %v", got, StateClosed)
	}

	cb.RecordFailure()
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() after 3 failures = %v, want %v", got, StateOpen)
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() while open = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_WindowAgesOutFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		Window:           30 * time.Millisecond,
		Cooldown:         time.Minute,
	})

	tripBreaker(cb, 2)
	time.Sleep(50 * time.Millisecond)

	// The first two failures are outside the window now, so this one
	// starts a fresh count.
	cb.RecordFailure()
	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %v, want %v", got, StateClosed)
	}
	if got := cb.Metrics().Failures; got != 1 {
		t.Errorf("Metrics().Failures = %d, want 1", got)
	}
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Window:           time.Second,
		Cooldown:         10 * time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State() after cooldown = %v, want %v", got, StateHalfOpen)
	}

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() for probe = %v, want nil", err)
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() second caller while probing = %v, want ErrCircuitOpen", err)
	}

	cb.RecordSuccess()
	if got := cb.State(); got != StateClosed {
		t.Errorf("State() after probe success = %v, want %v", got, StateClosed)
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow() after close = %v, want nil", err)
	}
}

func TestCircuitBreaker_FailedProbeGrowsCooldown(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Window:           time.Second,
		Cooldown:         10 * time.Millisecond,
		CooldownCap:      25 * time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() for probe = %v, want nil", err)
	}
	cb.RecordFailure()

	if got := cb.Metrics().Cooldown; got != 20*time.Millisecond {
		t.Errorf("cooldown after failed probe = %v, want 20ms", got)
	}
	if got := cb.State(); got != StateOpen {
		t.Errorf("State() after failed probe = %v, want %v", got, StateOpen)
	}

	// A second failed probe hits the cap.
	time.Sleep(30 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() for second probe = %v, want nil", err)
	}
	cb.RecordFailure()
	if got := cb.Metrics().Cooldown; got != 25*time.Millisecond {
		t.Errorf("cooldown after capped growth = %v, want 25ms", got)
	}
}

func TestCircuitBreaker_ProbeSuccessResetsCooldown(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Window:           time.Second,
		Cooldown:         10 * time.Millisecond,
		CooldownCap:      time.Second,
	})

	cb.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}
	cb.RecordFailure() // cooldown now 20ms

	time.Sleep(25 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}
	cb.RecordSuccess()

	if got := cb.Metrics().Cooldown; got != 10*time.Millisecond {
		t.Errorf("cooldown after probe success = %v, want 10ms", got)
	}
}

func TestCircuitBreaker_AbortReleasesProbeToken(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Window:           time.Second,
		Cooldown:         10 * time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}

	cb.Abort()

	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State() after Abort = %v, want %v", got, StateHalfOpen)
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow() after Abort = %v, want nil (token released)", err)
	}
}

func TestCircuitBreaker_IsFailureClassifier(t *testing.T) {
	sentinel := errors.New("not a failure")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Window:           time.Second,
		Cooldown:         time.Minute,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, sentinel)
		},
	})

	cb.Record(sentinel)
	if got := cb.State(); got != StateClosed {
		t.Errorf("State() after classified non-failure = %v, want %v", got, StateClosed)
	}

	cb.Record(errors.New("real failure"))
	if got := cb.State(); got != StateOpen {
		t.Errorf("State() after classified failure = %v, want %v", got, StateOpen)
	}
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		Window:           time.Second,
		Cooldown:         time.Minute,
	})

	boom := errors.New("boom")
	op := func(context.Context) error { return boom }

	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), op); !errors.Is(err, boom) {
			t.Fatalf("Execute() attempt %d = %v, want boom", i, err)
		}
	}
	if err := cb.Execute(context.Background(), op); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() while open = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Window:           time.Second,
		Cooldown:         10 * time.Millisecond,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	cb.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}
	cb.RecordSuccess()

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Window:           time.Second,
		Cooldown:         time.Minute,
	})

	cb.RecordFailure()
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %v, want %v", got, StateOpen)
	}

	cb.Reset()
	if got := cb.State(); got != StateClosed {
		t.Errorf("State() after Reset = %v, want %v", got, StateClosed)
	}
	if got := cb.Metrics().Failures; got != 0 {
		t.Errorf("Metrics().Failures after Reset = %d, want 0", got)
	}
}
