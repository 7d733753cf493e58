package backoff

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: 2, RecoveryTimeout: time.Hour, SuccessThreshold: 1})

	failing := func() error { return errors.New("boom") }
	cb.Call(failing)
	if cb.State() != StateClosed {
		t.Fatalf("state after 1 failure = %s, want closed", cb.State())
	}
	cb.Call(failing)
	if cb.State() != StateOpen {
		t.Fatalf("state after 2 failures = %s, want open", cb.State())
	}
}

func TestCircuitBreakerRejectsCallsWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: 1, RecoveryTimeout: time.Hour, SuccessThreshold: 1})
	cb.Call(func() error { return errors.New("boom") })

	called := false
	err := cb.Call(func() error { called = true; return nil })
	if err == nil {
		t.Fatal("expected an error while circuit is open")
	}
	if called {
		t.Fatal("fn must not be invoked while the circuit is open")
	}
}

func TestCircuitBreakerHalfOpensAfterRecoveryTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 1})
	cb.Call(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open after first failure, got %s", cb.State())
	}

	time.Sleep(5 * time.Millisecond)

	called := false
	if err := cb.Call(func() error { called = true; return nil }); err != nil {
		t.Fatalf("unexpected error on half-open probe: %v", err)
	}
	if !called {
		t.Fatal("expected fn to be invoked once recovery timeout elapses")
	}
	if cb.State() != StateClosed {
		t.Fatalf("state after successful half-open probe = %s, want closed", cb.State())
	}
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 2})
	cb.Call(func() error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)

	cb.Call(func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Fatalf("state after half-open probe fails = %s, want open", cb.State())
	}
}

func TestCircuitBreakerRequiresSuccessThresholdToClose(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 2})
	cb.Call(func() error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)

	cb.Call(func() error { return nil }) // 1st success while half-open
	if cb.State() != StateHalfOpen {
		t.Fatalf("state after 1/2 successes = %s, want half-open", cb.State())
	}
	cb.Call(func() error { return nil }) // 2nd success closes it
	if cb.State() != StateClosed {
		t.Fatalf("state after 2/2 successes = %s, want closed", cb.State())
	}
}

func TestCircuitStateString(t *testing.T) {
	cases := map[CircuitState]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", CircuitState(99): "unknown"}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
