// Package mock provides a scripted mt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/babelcall/pkg/provider/mt"
)

// Compile-time assertion.
var _ mt.Provider = (*Provider)(nil)

// Call records the arguments of one Translate invocation.
type Call struct {
	Text       string
	SourceLang string
	TargetLang string
}

// Provider is a configurable mt.Provider test double.
type Provider struct {
	mu    sync.Mutex
	calls []Call

	// TranslateFunc, when set, handles each call. Otherwise Text/Err are
	// returned verbatim.
	TranslateFunc func(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	Text          string
	Err           error
}

// Translate implements mt.Provider.
func (p *Provider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	p.mu.Unlock()

	if p.TranslateFunc != nil {
		return p.TranslateFunc(ctx, text, sourceLang, targetLang)
	}
	return p.Text, p.Err
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}
