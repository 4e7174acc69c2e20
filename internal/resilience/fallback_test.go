package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/babelcall/pkg/provider/stt"
	sttmock "github.com/MrWong99/babelcall/pkg/provider/stt/mock"
)

// sttGroup assembles a two-backend group the way the stage wrappers do.
func sttGroup(primary, secondary stt.Provider, cbCfg CircuitBreakerConfig) *FallbackGroup[stt.Provider] {
	fg := NewFallbackGroup[stt.Provider](primary, "stt/primary", FallbackConfig{CircuitBreaker: cbCfg})
	fg.AddFallback("stt/secondary", secondary)
	return fg
}

func groupTranscribe(fg *FallbackGroup[stt.Provider], lang string) (string, error) {
	return ExecuteWithResult(fg, func(p stt.Provider) (string, error) {
		return p.Transcribe(context.Background(), []byte{1, 2, 3}, lang)
	})
}

func TestFallbackGroup_PrimaryHandlesCall(t *testing.T) {
	primary := &sttmock.Provider{Text: "hello"}
	secondary := &sttmock.Provider{Text: "unused"}
	fg := sttGroup(primary, secondary, CircuitBreakerConfig{MaxFailures: 3})

	text, err := groupTranscribe(fg, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello" {
		t.Fatalf("text = %q, want %q", text, "hello")
	}
	if len(secondary.Calls()) != 0 {
		t.Errorf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestFallbackGroup_FailoverToSecondary(t *testing.T) {
	primary := &sttmock.Provider{Err: errBackendDown}
	secondary := &sttmock.Provider{Text: "hallo"}
	fg := sttGroup(primary, secondary, CircuitBreakerConfig{MaxFailures: 3})

	text, err := groupTranscribe(fg, "de")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hallo" {
		t.Fatalf("text = %q, want %q", text, "hallo")
	}
	if got := primary.Calls(); len(got) != 1 || got[0].Lang != "de" {
		t.Errorf("primary calls = %+v, want one call with lang de", got)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errBackendDown}
	secondary := &sttmock.Provider{Err: errors.New("secondary down")}
	fg := sttGroup(primary, secondary, CircuitBreakerConfig{MaxFailures: 3})

	_, err := groupTranscribe(fg, "en")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenCircuitSkipsPrimary(t *testing.T) {
	primary := &sttmock.Provider{Err: errBackendDown}
	secondary := &sttmock.Provider{Text: "bonjour"}
	fg := sttGroup(primary, secondary, CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	// Two failed calls trip the primary's circuit.
	for range 2 {
		if _, err := groupTranscribe(fg, "fr"); err != nil {
			t.Fatalf("unexpected error during failover: %v", err)
		}
	}
	if len(primary.Calls()) != 2 {
		t.Fatalf("primary called %d times, want 2", len(primary.Calls()))
	}

	// The next call goes straight to the secondary.
	text, err := groupTranscribe(fg, "fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "bonjour" {
		t.Fatalf("text = %q, want %q", text, "bonjour")
	}
	if len(primary.Calls()) != 2 {
		t.Errorf("primary called %d times after trip, want 2", len(primary.Calls()))
	}
}

func TestFallbackGroup_ExecuteVoid(t *testing.T) {
	primary := &sttmock.Provider{Err: errBackendDown}
	secondary := &sttmock.Provider{Text: "ok"}
	fg := sttGroup(primary, secondary, CircuitBreakerConfig{MaxFailures: 3})

	var warmed []string
	err := fg.Execute(func(p stt.Provider) error {
		_, tErr := p.Transcribe(context.Background(), nil, "en")
		if tErr == nil {
			warmed = append(warmed, "ok")
		}
		return tErr
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warmed) != 1 {
		t.Fatalf("fn succeeded %d times, want 1", len(warmed))
	}
}

func TestFallbackGroup_ExecuteVoidAllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errBackendDown}
	fg := NewFallbackGroup[stt.Provider](primary, "stt/primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	err := fg.Execute(func(p stt.Provider) error {
		_, tErr := p.Transcribe(context.Background(), nil, "en")
		return tErr
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
