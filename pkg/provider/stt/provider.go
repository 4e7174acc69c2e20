// Package stt defines the Provider interface for speech-to-text backends.
//
// Unlike streaming transcription services, the call bridge always hands the
// provider one complete utterance at a time — segmentation happens upstream —
// so the interface is a single blocking call per segment. Implementations
// must be safe for concurrent use; the worker pool may transcribe segments
// from both call directions at once.
package stt

import "context"

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe converts one utterance of raw mono 16-bit little-endian PCM
	// at 16 kHz into text. lang is the ISO 639-1 code of the spoken language;
	// an empty string lets the backend auto-detect if supported.
	//
	// An empty result with a nil error means the backend found no usable
	// speech in the audio. Errors indicate the backend itself failed.
	// Implementations must respect ctx cancellation.
	Transcribe(ctx context.Context, pcm []byte, lang string) (string, error)
}
