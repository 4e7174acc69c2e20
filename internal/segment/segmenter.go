package segment

import (
	"log/slog"
	"time"
)

// Config holds the utterance boundary parameters for a Segmenter.
// All durations are measured in wall-clock time of chunk arrival, not in
// audio playback time, matching the live-stream nature of the input.
type Config struct {
	// SilenceThreshold is how long sub-threshold energy must persist after
	// speech before the accumulated utterance is considered finished.
	SilenceThreshold time.Duration

	// MinSpeechDuration is the shortest speech span worth emitting; anything
	// shorter is treated as noise and discarded silently.
	MinSpeechDuration time.Duration

	// MaxSpeechDuration forces an emit of everything accumulated so far when
	// a speaker never pauses, keeping downstream latency and buffering
	// bounded. Must be ≥ MinSpeechDuration.
	MaxSpeechDuration time.Duration
}

// Segmenter is the per-participant voice-activity state machine. It is owned
// by a single connection handler and is not safe for concurrent use.
//
// A Segmenter is either idle (waiting for speech onset) or speaking
// (accumulating chunks). While speaking, every chunk is buffered — including
// trailing silence — so that natural pauses inside an utterance survive into
// the emitted segment.
type Segmenter struct {
	cfg      Config
	detector Detector

	// now is the clock source; replaced in tests.
	now func() time.Time

	speaking    bool
	speechStart time.Time
	lastSpeech  time.Time
	buf         []byte
}

// Option configures a Segmenter at construction time.
type Option func(*Segmenter)

// WithDetector replaces the default energy detector.
func WithDetector(d Detector) Option {
	return func(s *Segmenter) { s.detector = d }
}

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) { s.now = now }
}

// New creates a Segmenter with the given boundary config and a default
// [EnergyDetector] at the given RMS threshold.
func New(cfg Config, energyThreshold float64, opts ...Option) *Segmenter {
	s := &Segmenter{
		cfg:      cfg,
		detector: EnergyDetector{Threshold: energyThreshold},
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddChunk feeds one PCM chunk into the state machine. When ok is true,
// segment holds the accumulated utterance bytes and the Segmenter has reset
// to idle. When ok is false the call had no effect beyond internal state.
func (s *Segmenter) AddChunk(chunk []byte) (segment []byte, ok bool) {
	now := s.now()

	speech, err := s.detector.Classify(chunk)
	if err != nil {
		// Fail open: a broken detector must not eat real utterances.
		slog.Warn("speech detector failed, treating chunk as speech", "err", err)
		speech = true
	}

	if !s.speaking {
		if !speech {
			return nil, false
		}
		s.speaking = true
		s.speechStart = now
		s.lastSpeech = now
		s.buf = append(s.buf[:0], chunk...)
		return nil, false
	}

	s.buf = append(s.buf, chunk...)
	if speech {
		s.lastSpeech = now
	}

	// Hard cap on continuous speech, independent of silence tracking.
	if now.Sub(s.speechStart) >= s.cfg.MaxSpeechDuration {
		return s.flush(), true
	}

	if !speech && now.Sub(s.lastSpeech) >= s.cfg.SilenceThreshold {
		if s.lastSpeech.Sub(s.speechStart) >= s.cfg.MinSpeechDuration {
			return s.flush(), true
		}
		// Too short to be speech: drop it without signalling the caller.
		s.Reset()
	}
	return nil, false
}

// flush hands the accumulated buffer to the caller and resets to idle.
// Ownership of the returned slice transfers to the caller.
func (s *Segmenter) flush() []byte {
	out := s.buf
	s.buf = nil
	s.speaking = false
	s.speechStart = time.Time{}
	s.lastSpeech = time.Time{}
	return out
}

// Reset clears all accumulated state and returns the Segmenter to idle.
// It has no side effects on the caller.
func (s *Segmenter) Reset() {
	s.buf = nil
	s.speaking = false
	s.speechStart = time.Time{}
	s.lastSpeech = time.Time{}
}
