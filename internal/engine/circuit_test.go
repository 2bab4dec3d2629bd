package engine

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	for i := 0; i < 2; i++ {
		cb.Failure()
	}
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow below threshold: %v", err)
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Errorf("State = %v, want open", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
	})

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow after timeout: %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("State = %v, want half-open", cb.State())
	}

	cb.Success()
	if cb.State() != CircuitHalfOpen {
		t.Errorf("State after one success = %v, want half-open", cb.State())
	}
	cb.Success()
	if cb.State() != CircuitClosed {
		t.Errorf("State after two successes = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          5 * time.Millisecond,
	})

	cb.Failure()
	time.Sleep(10 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow: %v", err)
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Errorf("State = %v, want open after half-open failure", cb.State())
	}
}

func TestCircuitStateString(t *testing.T) {
	cases := map[CircuitState]string{
		CircuitClosed:   "closed",
		CircuitOpen:     "open",
		CircuitHalfOpen: "half-open",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("String(%d) = %q, want %q", state, got, want)
		}
	}
}
