// Package mock provides an in-memory mock implementation of [engine.Translator]
// for use in unit tests.
//
// The mock records every call and allows the test to configure return values
// via exported fields. It is safe for concurrent use.
//
// Example:
//
//	e := &mock.Translator{
//	    Outcome: engine.Outcome{
//	        Kind:           engine.KindSpeech,
//	        SourceText:     "Hello.",
//	        TranslatedText: "Hallo.",
//	    },
//	}
//	out := e.Translate(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/babelcall/internal/engine"
)

// Compile-time interface assertion.
var _ engine.Translator = (*Translator)(nil)

// Translator is a mock implementation of [engine.Translator].
// TranslateFunc, when set, fully controls each response; otherwise Outcome is
// returned. Calls accumulate invocation records.
type Translator struct {
	mu    sync.Mutex
	calls []engine.Request

	// TranslateFunc, when set, handles each call.
	TranslateFunc func(ctx context.Context, req engine.Request) engine.Outcome

	// Outcome is returned when TranslateFunc is nil.
	Outcome engine.Outcome
}

// Translate records the request and returns the scripted outcome.
func (m *Translator) Translate(ctx context.Context, req engine.Request) engine.Outcome {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, req)
	}
	return m.Outcome
}

// Calls returns a copy of all recorded requests.
func (m *Translator) Calls() []engine.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engine.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded requests.
func (m *Translator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
