package resilience

import (
	"context"
	"errors"
	"testing"

	mtmock "github.com/MrWong99/babelcall/pkg/provider/mt/mock"
)

func TestMTFallback_PrimarySuccess(t *testing.T) {
	primary := &mtmock.Provider{Text: "bonjour"}
	secondary := &mtmock.Provider{Text: "salut"}

	fb := NewMTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	out, err := fb.Translate(context.Background(), "hello", "en", "fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "bonjour" {
		t.Fatalf("out = %q, want %q", out, "bonjour")
	}
	if len(secondary.Calls()) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestMTFallback_Failover(t *testing.T) {
	primary := &mtmock.Provider{Err: errors.New("rate limited")}
	secondary := &mtmock.Provider{Text: "hallo"}

	fb := NewMTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	out, err := fb.Translate(context.Background(), "hello", "en", "de")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hallo" {
		t.Fatalf("out = %q, want %q", out, "hallo")
	}

	calls := secondary.Calls()
	if len(calls) != 1 {
		t.Fatalf("secondary called %d times, want 1", len(calls))
	}
	if calls[0].SourceLang != "en" || calls[0].TargetLang != "de" {
		t.Fatalf("languages = %s→%s, want en→de", calls[0].SourceLang, calls[0].TargetLang)
	}
}

func TestMTFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &mtmock.Provider{Err: errors.New("down")}
	secondary := &mtmock.Provider{Text: "ok"}

	fb := NewMTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	fb.AddFallback("secondary", secondary)

	// Two failures trip the primary's breaker.
	for range 2 {
		if _, err := fb.Translate(context.Background(), "x", "en", "fr"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := len(primary.Calls()); got != 2 {
		t.Fatalf("primary called %d times, want 2", got)
	}

	// Third call goes straight to the fallback.
	if _, err := fb.Translate(context.Background(), "x", "en", "fr"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(primary.Calls()); got != 2 {
		t.Fatalf("primary called %d times after breaker opened, want 2", got)
	}
}

func TestMTFallback_AllFail(t *testing.T) {
	primary := &mtmock.Provider{Err: errors.New("primary down")}
	secondary := &mtmock.Provider{Err: errors.New("secondary down")}

	fb := NewMTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Translate(context.Background(), "hello", "en", "fr")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
