// Package coqui provides a TTS provider backed by a local Coqui TTS server
// (ghcr.io/coqui-ai/tts-cpu) via its REST API. Synthesis is performed with
// GET /api/tts; the server responds with a mono 16-bit WAV whose PCM payload
// is extracted and returned.
//
// Typical usage:
//
//	p := coqui.New("http://localhost:5002",
//	    coqui.WithTimeout(15*time.Second),
//	    coqui.WithSpeaker("p225"),
//	)
//	res, err := p.Synthesize(ctx, "bonjour", "fr")
package coqui

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MrWong99/babelcall/pkg/audio"
	"github.com/MrWong99/babelcall/pkg/provider/tts"
)

const (
	defaultTimeout = 30 * time.Second
	ttsEndpoint    = "/api/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider against a Coqui TTS server.
// Safe for concurrent use; each Synthesize is an independent HTTP request.
type Provider struct {
	serverURL  string
	speaker    string
	httpClient *http.Client
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithSpeaker selects a speaker ID for multi-speaker models. Empty (the
// default) uses the model's default voice.
func WithSpeaker(id string) Option {
	return func(p *Provider) { p.speaker = id }
}

// New creates a Provider pointed at a Coqui TTS server base URL
// (e.g., "http://localhost:5002").
func New(serverURL string, opts ...Option) *Provider {
	p := &Provider{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, lang string) (*tts.Result, error) {
	params := url.Values{}
	params.Set("text", text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if lang != "" {
		params.Set("language_id", lang)
	}

	reqURL := p.serverURL + ttsEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", ttsEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}

	pcm, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("coqui: decode response: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("coqui: server returned empty audio")
	}

	return &tts.Result{PCM: pcm, SampleRate: rate}, nil
}
