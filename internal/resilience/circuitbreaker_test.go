package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sttmock "github.com/MrWong99/babelcall/pkg/provider/stt/mock"
)

var errBackendDown = errors.New("backend down")

// transcribeThrough runs one Transcribe call against p behind cb.
func transcribeThrough(cb *CircuitBreaker, p *sttmock.Provider) (string, error) {
	var text string
	err := cb.Execute(func() error {
		var callErr error
		text, callErr = p.Transcribe(context.Background(), []byte{1, 2}, "en")
		return callErr
	})
	return text, err
}

// expireResetTimeout backdates the trip time so the next call is a trial.
func expireResetTimeout(cb *CircuitBreaker) {
	cb.mu.Lock()
	cb.trippedAt = time.Now().Add(-time.Minute)
	cb.mu.Unlock()
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "stt/whisper"})

	if cb.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", cb.maxFailures)
	}
	if cb.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", cb.resetTimeout)
	}
	if cb.halfOpenMax != 3 {
		t.Errorf("halfOpenMax = %d, want 3", cb.halfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ClosedForwardsCalls(t *testing.T) {
	backend := &sttmock.Provider{Text: "guten tag"}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "stt/whisper"})

	for range 10 {
		text, err := transcribeThrough(cb, backend)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "guten tag" {
			t.Fatalf("text = %q, want %q", text, "guten tag")
		}
	}
	if got := len(backend.Calls()); got != 10 {
		t.Errorf("backend called %d times, want 10", got)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	backend := &sttmock.Provider{Err: errBackendDown}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "stt/whisper",
		MaxFailures:  3,
		ResetTimeout: time.Hour,
	})

	for i := range 3 {
		if _, err := transcribeThrough(cb, backend); !errors.Is(err, errBackendDown) {
			t.Fatalf("call %d: err = %v, want backend error", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after 3 failures", cb.State())
	}

	// The tripped circuit rejects without reaching the backend.
	if _, err := transcribeThrough(cb, backend); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if got := len(backend.Calls()); got != 3 {
		t.Errorf("backend called %d times, want 3", got)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	fail := true
	flaky := &sttmock.Provider{
		TranscribeFunc: func(context.Context, []byte, string) (string, error) {
			fail = !fail
			if fail {
				return "", errBackendDown
			}
			return "ok", nil
		},
	}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "stt/whisper", MaxFailures: 2})

	// Alternating outcomes never accumulate two consecutive failures.
	for range 8 {
		transcribeThrough(cb, flaky)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	backend := &sttmock.Provider{Err: errBackendDown}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "stt/whisper",
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})

	transcribeThrough(cb, backend)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	expireResetTimeout(cb)
	if cb.State() != StateHalfOpen {
		t.Errorf("state = %v, want half-open once the timeout elapsed", cb.State())
	}
}

func TestCircuitBreaker_ClosesAfterSuccessfulTrials(t *testing.T) {
	backend := &sttmock.Provider{Err: errBackendDown}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "stt/whisper",
		MaxFailures:  1,
		ResetTimeout: time.Hour,
		HalfOpenMax:  2,
	})

	transcribeThrough(cb, backend)
	expireResetTimeout(cb)

	// The backend recovered: two trial successes close the circuit.
	backend.Err = nil
	backend.Text = "bonjour"
	for i := range 2 {
		if _, err := transcribeThrough(cb, backend); err != nil {
			t.Fatalf("trial %d: unexpected error: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after successful trials", cb.State())
	}

	// Closed again, no trial bound on further calls.
	for range 5 {
		if _, err := transcribeThrough(cb, backend); err != nil {
			t.Fatalf("unexpected error after close: %v", err)
		}
	}
}

func TestCircuitBreaker_ReopensOnFailedTrial(t *testing.T) {
	backend := &sttmock.Provider{Err: errBackendDown}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "stt/whisper",
		MaxFailures:  1,
		ResetTimeout: time.Hour,
		HalfOpenMax:  3,
	})

	transcribeThrough(cb, backend)
	expireResetTimeout(cb)

	// Still broken: one failed trial trips the circuit again.
	if _, err := transcribeThrough(cb, backend); !errors.Is(err, errBackendDown) {
		t.Fatalf("trial err = %v, want backend error", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after failed trial", cb.State())
	}
	if _, err := transcribeThrough(cb, backend); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	backend := &sttmock.Provider{Err: errBackendDown}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "stt/whisper",
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})

	transcribeThrough(cb, backend)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after Reset", cb.State())
	}

	backend.Err = nil
	backend.Text = "hola"
	if text, err := transcribeThrough(cb, backend); err != nil || text != "hola" {
		t.Fatalf("call after Reset = %q, %v", text, err)
	}
}

func TestState_String(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
