package backend

import (
	"testing"
	"time"
)

func TestCircuitBreaker_tripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 1, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Fatal("breaker tripped early")
	}

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatal("breaker did not trip at threshold")
	}
	if err := cb.Allow(); err == nil {
		t.Error("open breaker should reject requests")
	}
}

func TestCircuitBreaker_successResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(2, 1, time.Minute)

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Error("non-consecutive failures should not trip")
	}
}

func TestCircuitBreaker_halfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("probe after timeout rejected: %v", err)
	}
	if cb.State() != BreakerHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != BreakerHalfOpen {
		t.Error("one success should not close yet")
	}
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Error("breaker should close after success threshold")
	}
}

func TestCircuitBreaker_halfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Error("half-open failure should reopen immediately")
	}
	if err := cb.Allow(); err == nil {
		t.Error("reopened breaker should reject requests")
	}
}

func TestBreakerState_String(t *testing.T) {
	cases := map[BreakerState]string{
		BreakerClosed:   "closed",
		BreakerOpen:     "open",
		BreakerHalfOpen: "half-open",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
