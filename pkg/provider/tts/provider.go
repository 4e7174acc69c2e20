// Package tts defines the Provider interface for text-to-speech backends.
//
// The bridge synthesises one complete translated utterance at a time, so the
// interface is batch rather than streaming. Implementations must be safe for
// concurrent use.
package tts

import "context"

// Result is one synthesised utterance as raw audio.
type Result struct {
	// PCM is mono 16-bit little-endian PCM at SampleRate. The delivery layer
	// wraps it in a WAV container before putting it on the wire.
	PCM []byte

	// SampleRate is the synthesis output rate in Hz. Backends differ (Coqui
	// models are typically 22 050 Hz, OpenAI PCM is 24 000 Hz) and the rate
	// is carried through to the WAV header rather than resampled.
	SampleRate int
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as speech in the given ISO 639-1 language.
	// Returns an error when the backend fails or produces no audio;
	// implementations must respect ctx cancellation.
	Synthesize(ctx context.Context, text, lang string) (*Result, error)
}
