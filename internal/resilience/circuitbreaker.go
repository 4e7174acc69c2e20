// Package resilience shields the translation pipeline from flaky speech
// providers. [CircuitBreaker] stops hammering a backend that keeps failing,
// and [FallbackGroup] routes around a tripped backend to the next configured
// one so a call in progress keeps producing translations.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// open and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call to the backend.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen]. Entered after too many
	// consecutive failures, left once the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of trial calls through to find out
	// whether the backend has recovered.
	StateHalfOpen
)

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

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values fall back to
// defaults in [NewCircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the backend in log output, e.g. "stt/whisper".
	Name string

	// MaxFailures is how many consecutive failures trip the breaker. Default 5.
	MaxFailures int

	// ResetTimeout is how long a tripped breaker rejects calls before trial
	// calls are allowed again. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the trial calls in the half-open state. The breaker
	// closes again once this many succeed. Default 3.
	HalfOpenMax int
}

// CircuitBreaker is a three-state breaker guarding one backend.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu         sync.Mutex
	state      State
	failures   int
	trippedAt  time.Time
	trials     int
	trialFails int
}

// NewCircuitBreaker creates a closed breaker, substituting defaults for any
// zero config field.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn unless the breaker rejects the call, and feeds fn's result
// back into the breaker's failure accounting. fn's error is returned as-is.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()
	cb.observe(err, trial)
	return err
}

// admit decides whether a call may proceed. It reports whether the call counts
// as a half-open trial.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.trippedAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.trials = 0
		cb.trialFails = 0
		slog.Info("circuit half-open, allowing trial calls",
			slog.String("backend", cb.name))

	case StateHalfOpen:
		if cb.trials >= cb.halfOpenMax {
			// Trial slots taken, outcome still pending.
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.trials++
		return true, nil
	}
	return false, nil
}

// observe records the outcome of an admitted call.
func (cb *CircuitBreaker) observe(err error, trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if !trial {
			cb.failures = 0
			return
		}
		if cb.trials-cb.trialFails >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			cb.trials = 0
			cb.trialFails = 0
			slog.Info("circuit closed, backend recovered",
				slog.String("backend", cb.name))
		}
		return
	}

	cb.trippedAt = time.Now()
	if trial {
		// One failed trial is enough to re-open.
		cb.trialFails++
		cb.state = StateOpen
		cb.failures = cb.maxFailures
		slog.Warn("circuit re-opened, trial call failed",
			slog.String("backend", cb.name))
		return
	}

	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit opened",
			slog.String("backend", cb.name),
			slog.Int("consecutive_failures", cb.failures))
	}
}

// State returns the breaker's current state. An open breaker whose reset
// timeout has elapsed reports [StateHalfOpen]; the stored state flips on the
// next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.trippedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateClosed && cb.failures == 0 {
		return
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.trials = 0
	cb.trialFails = 0
	slog.Info("circuit reset", slog.String("backend", cb.name))
}
