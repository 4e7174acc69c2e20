// Package mock provides a scripted stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/babelcall/pkg/provider/stt"
)

// Compile-time assertion.
var _ stt.Provider = (*Provider)(nil)

// Call records the arguments of one Transcribe invocation.
type Call struct {
	PCM  []byte
	Lang string
}

// Provider is a configurable stt.Provider test double.
type Provider struct {
	mu    sync.Mutex
	calls []Call

	// TranscribeFunc, when set, handles each call. Otherwise Text/Err are
	// returned verbatim.
	TranscribeFunc func(ctx context.Context, pcm []byte, lang string) (string, error)
	Text           string
	Err            error
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, lang string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{PCM: pcm, Lang: lang})
	p.mu.Unlock()

	if p.TranscribeFunc != nil {
		return p.TranscribeFunc(ctx, pcm, lang)
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
