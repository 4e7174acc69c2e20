// Package engine defines the Translator interface and its supporting types.
//
// A Translator is responsible for the core processing loop of one speech
// segment: it receives a buffered PCM utterance from one call participant,
// runs STT → MT → TTS, and returns an [Outcome] describing what should be
// delivered to the participant's peer.
//
// Outcomes are tagged rather than encoded in the result text: a transcription
// that produced no usable words is [KindSilence], a transcription the STT
// model is known to fabricate on non-speech input is [KindHallucination], and
// a pipeline stage failure is [KindEngineError]. Only [KindSpeech] carries
// audio and a caption for delivery.
//
// Implementations are provided by the cascade subpackage. The interface is
// intentionally narrow so that the dispatch layer remains provider-agnostic.
//
// This package lives under internal/ because it encapsulates application-private
// processing logic and is not intended to be imported by external code.
package engine

import "context"

// Kind discriminates the variants of an [Outcome].
type Kind int

const (
	// KindSpeech means the segment produced a usable translation. SourceText,
	// TranslatedText, and usually Audio are populated.
	KindSpeech Kind = iota

	// KindSilence means STT found no usable words in the segment. Nothing is
	// delivered to the peer.
	KindSilence

	// KindHallucination means STT produced a known non-speech artefact such
	// as "[BLANK_AUDIO]" or "(music)". Nothing is delivered to the peer.
	KindHallucination

	// KindEngineError means a pipeline stage failed. Err carries the cause.
	KindEngineError
)

// String returns a short lowercase label for the kind, suitable for metric
// attributes and log fields.
func (k Kind) String() string {
	switch k {
	case KindSpeech:
		return "speech"
	case KindSilence:
		return "silence"
	case KindHallucination:
		return "hallucination"
	case KindEngineError:
		return "error"
	default:
		return "unknown"
	}
}

// Request carries one buffered speech segment through the pipeline.
type Request struct {
	// PCM is the raw segment audio: 16-bit little-endian mono samples.
	PCM []byte

	// SampleRate is the sample rate of PCM in Hz.
	SampleRate int

	// SourceLang is the speaker's language as a lowercase ISO 639-1 code.
	SourceLang string

	// TargetLang is the peer's language as a lowercase ISO 639-1 code.
	TargetLang string
}

// Outcome is the result of one [Translator.Translate] call. Check Kind before
// reading the other fields; only the fields documented for that kind are set.
type Outcome struct {
	Kind Kind

	// SourceText is the raw transcription in the speaker's language.
	// Set for KindSpeech and KindHallucination.
	SourceText string

	// TranslatedText is the translation in the peer's language.
	// Set for KindSpeech only.
	TranslatedText string

	// Audio is the synthesised translation as a complete WAV container, ready
	// to send as a single binary frame. May be nil for KindSpeech when
	// synthesis failed; the dispatcher discards the segment in that case.
	Audio []byte

	// Err is the stage failure for KindEngineError.
	Err error
}

// Translator converts one speech segment from the source language into
// translated text and audio in the target language.
//
// Translate respects cancellation of ctx; the dispatch layer bounds each call
// with a per-segment deadline. Implementations must be safe for concurrent
// use — segments from both call participants flow through one shared
// Translator.
type Translator interface {
	Translate(ctx context.Context, req Request) Outcome
}
