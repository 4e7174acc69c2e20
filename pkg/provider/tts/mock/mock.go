// Package mock provides a scripted tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/babelcall/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// Call records a single Synthesize invocation.
type Call struct {
	Text string
	Lang string
}

// Provider is a scripted tts.Provider. The zero value returns a small fixed
// PCM payload for every call.
type Provider struct {
	mu    sync.Mutex
	calls []Call

	// SynthesizeFunc, when set, fully controls the response.
	SynthesizeFunc func(ctx context.Context, text, lang string) (*tts.Result, error)
	// Result is returned when SynthesizeFunc is nil and Err is nil.
	Result *tts.Result
	// Err is returned when SynthesizeFunc is nil.
	Err error
}

func (p *Provider) Synthesize(ctx context.Context, text, lang string) (*tts.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Text: text, Lang: lang})
	p.mu.Unlock()

	if p.SynthesizeFunc != nil {
		return p.SynthesizeFunc(ctx, text, lang)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &tts.Result{PCM: []byte{0, 0, 0, 0}, SampleRate: 16000}, nil
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}
