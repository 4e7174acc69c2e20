// Package cascade implements the three-stage translation cascade engine.
//
// One [Engine.Translate] call runs a buffered speech segment through:
//
//  1. STT — transcribe the segment in the speaker's language.
//  2. MT — translate the transcript into the peer's language.
//  3. TTS — synthesise the translation as audio for the peer.
//
// The stages degrade independently: an empty transcript short-circuits the
// cascade as silence, a transcript matching a known STT artefact pattern is
// classified as a hallucination, and a TTS failure still yields a speech
// outcome with both texts but no audio, which the dispatcher discards. Only
// STT and MT failures surface as engine errors.
package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/babelcall/internal/engine"
	"github.com/MrWong99/babelcall/internal/observe"
	"github.com/MrWong99/babelcall/pkg/audio"
	"github.com/MrWong99/babelcall/pkg/provider/mt"
	"github.com/MrWong99/babelcall/pkg/provider/stt"
	"github.com/MrWong99/babelcall/pkg/provider/tts"
)

// warmupText is the phrase sent through the MT stage during [Engine.Warmup].
// Short enough to be cheap, long enough to force model load.
const warmupText = "Hello, can you hear me?"

// Engine implements [engine.Translator] by cascading STT, MT, and TTS
// providers. It holds no per-segment state and is safe for concurrent use as
// long as the underlying providers are.
type Engine struct {
	sttP stt.Provider
	mtP  mt.Provider
	ttsP tts.Provider

	sttName string
	mtName  string
	ttsName string

	metrics *observe.Metrics
}

// Compile-time assertion that Engine satisfies the engine.Translator interface.
var _ engine.Translator = (*Engine)(nil)

// Option is a functional option for configuring an Engine during construction.
type Option func(*Engine)

// WithMetrics sets the metrics sink for stage latencies and provider errors.
// Default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithProviderNames sets the provider labels used in metric attributes and
// log fields. Defaults are "stt", "mt", and "tts".
func WithProviderNames(sttName, mtName, ttsName string) Option {
	return func(e *Engine) {
		e.sttName = sttName
		e.mtName = mtName
		e.ttsName = ttsName
	}
}

// New constructs a cascade Engine backed by the given providers.
// Options are applied after the engine is initialised with its defaults.
func New(sttP stt.Provider, mtP mt.Provider, ttsP tts.Provider, opts ...Option) *Engine {
	e := &Engine{
		sttP:    sttP,
		mtP:     mtP,
		ttsP:    ttsP,
		sttName: "stt",
		mtName:  "mt",
		ttsName: "tts",
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Translate runs one speech segment through the full cascade and returns a
// tagged [engine.Outcome]. It never panics on provider failure; every failure
// mode maps to an outcome kind.
func (e *Engine) Translate(ctx context.Context, req engine.Request) engine.Outcome {
	log := observe.Logger(ctx)

	// ── Stage 1: STT ─────────────────────────────────────────────────────────

	start := time.Now()
	text, err := e.sttP.Transcribe(ctx, req.PCM, req.SourceLang)
	e.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordProviderError(ctx, e.sttName, "stt")
		return engine.Outcome{
			Kind: engine.KindEngineError,
			Err:  fmt.Errorf("cascade: transcription failed: %w", err),
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return engine.Outcome{Kind: engine.KindSilence}
	}
	if isHallucination(text) {
		log.Debug("discarding transcription artefact",
			slog.String("text", text),
			slog.String("lang", req.SourceLang))
		return engine.Outcome{Kind: engine.KindHallucination, SourceText: text}
	}

	// ── Stage 2: MT ──────────────────────────────────────────────────────────

	start = time.Now()
	translated, err := e.mtP.Translate(ctx, text, req.SourceLang, req.TargetLang)
	e.metrics.MTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordProviderError(ctx, e.mtName, "mt")
		return engine.Outcome{
			Kind:       engine.KindEngineError,
			SourceText: text,
			Err:        fmt.Errorf("cascade: translation failed: %w", err),
		}
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		// An empty translation of non-empty text has nothing to say either.
		return engine.Outcome{Kind: engine.KindSilence, SourceText: text}
	}

	out := engine.Outcome{
		Kind:           engine.KindSpeech,
		SourceText:     text,
		TranslatedText: translated,
	}

	// ── Stage 3: TTS ─────────────────────────────────────────────────────────

	start = time.Now()
	res, err := e.ttsP.Synthesize(ctx, translated, req.TargetLang)
	e.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		// The outcome keeps both texts for logging, but with a nil Audio the
		// dispatcher delivers nothing for this segment.
		e.metrics.RecordProviderError(ctx, e.ttsName, "tts")
		log.Warn("synthesis failed",
			slog.String("provider", e.ttsName),
			slog.String("error", err.Error()))
		return out
	}

	wav, err := audio.EncodeWAV(res.PCM, res.SampleRate)
	if err != nil {
		log.Warn("encoding synthesised audio failed",
			slog.String("error", err.Error()))
		return out
	}
	out.Audio = wav
	return out
}

// Warmup exercises the MT stage once per language pair so that lazily loaded
// models are resident before the first live segment arrives. Failures are
// logged and skipped; a cold model is a latency problem, not a startup error.
func (e *Engine) Warmup(ctx context.Context, pairs [][2]string) {
	for _, p := range pairs {
		start := time.Now()
		if _, err := e.mtP.Translate(ctx, warmupText, p[0], p[1]); err != nil {
			slog.Warn("translation warmup failed",
				slog.String("source_lang", p[0]),
				slog.String("target_lang", p[1]),
				slog.String("error", err.Error()))
			continue
		}
		slog.Info("translation pair warmed up",
			slog.String("source_lang", p[0]),
			slog.String("target_lang", p[1]),
			slog.Duration("took", time.Since(start)))
	}
}

// hallucinationMarkers are exact lowercase artefacts some STT models emit on
// non-speech audio, beyond the generic bracketed forms.
var hallucinationMarkers = map[string]struct{}{
	"thank you.":              {},
	"thanks for watching!":    {},
	"thank you for watching.": {},
	"you":                     {},
}

// isHallucination reports whether a non-empty transcript is a known STT
// artefact rather than real speech: fully bracketed or parenthesised markers
// like "[BLANK_AUDIO]" or "(music)", music note glyphs, or one of a small set
// of phrases models fabricate on silence.
func isHallucination(text string) bool {
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		return true
	}
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		return true
	}
	if strings.ContainsRune(text, '♪') {
		return true
	}
	_, known := hallucinationMarkers[strings.ToLower(text)]
	return known
}
