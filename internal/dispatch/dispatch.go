// Package dispatch routes buffered speech segments from a call participant
// through the translation engine and delivers the result to the participant's
// peer.
//
// Each participant has at most one segment in flight at a time. While a
// segment is processing, further segments from the same participant are
// dropped rather than queued: in a live call a translation that arrives three
// utterances late is worse than no translation at all. Overall engine
// concurrency is additionally bounded by a worker semaphore shared across all
// calls.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/babelcall/internal/engine"
	"github.com/MrWong99/babelcall/internal/observe"
)

const (
	// DefaultTimeout bounds one segment's trip through the engine.
	DefaultTimeout = 30 * time.Second

	// DefaultWorkers is the default size of the shared worker pool.
	DefaultWorkers = 2
)

// Caption is the text half of a delivered translation.
type Caption struct {
	// SourceText is the transcription in the speaker's language.
	SourceText string

	// TranslatedText is the translation in the listener's language.
	TranslatedText string
}

// Peer is one side of a call as seen by the dispatcher.
//
// SendAudio and SendCaption may be called from dispatcher goroutines and must
// be safe for concurrent use with the peer's own read loop. A send that fails
// because the peer hung up mid-delivery is treated as routine call teardown,
// not a fault.
type Peer interface {
	// ID identifies the participant within its room.
	ID() string

	// Lang is the participant's language as a lowercase ISO 639-1 code.
	Lang() string

	// Connected reports whether the participant's transport is still open.
	Connected() bool

	// SendAudio delivers synthesised translation audio as one binary frame.
	SendAudio(ctx context.Context, wav []byte) error

	// SendCaption delivers the text of a translation.
	SendCaption(ctx context.Context, c Caption) error
}

// Slot is a participant's single-flight guard. Each participant owns exactly
// one Slot for the lifetime of its connection; the dispatcher sets it while a
// segment is in flight and clears it when processing finishes, whatever the
// outcome.
type Slot struct {
	busy atomic.Bool
}

// InFlight reports whether a segment from this participant is currently
// processing.
func (s *Slot) InFlight() bool {
	return s.busy.Load()
}

// Dispatcher fans speech segments into a shared [engine.Translator] and
// delivers outcomes to peers. Safe for concurrent use.
type Dispatcher struct {
	translator engine.Translator
	sem        *semaphore.Weighted
	timeout    time.Duration
	metrics    *observe.Metrics

	// wg tracks in-flight segment goroutines so shutdown (and tests) can
	// synchronise with the end of processing.
	wg sync.WaitGroup
}

// Option is a functional option for configuring a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each segment's trip through the engine.
// Default is [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.timeout = d }
}

// WithWorkers sets the size of the shared engine worker pool.
// Default is [DefaultWorkers].
func WithWorkers(n int) Option {
	return func(dp *Dispatcher) { dp.sem = semaphore.NewWeighted(int64(n)) }
}

// WithMetrics sets the metrics sink. Default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(dp *Dispatcher) { dp.metrics = m }
}

// New constructs a Dispatcher around the given translator.
func New(translator engine.Translator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		translator: translator,
		timeout:    DefaultTimeout,
	}
	for _, o := range opts {
		o(d)
	}
	if d.sem == nil {
		d.sem = semaphore.NewWeighted(DefaultWorkers)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Dispatch hands one buffered segment from src to the engine for delivery to
// dst. It returns immediately: true when the segment was accepted for
// processing, false when it was dropped because src already has a segment in
// flight.
//
// ctx should be the source session's connection context; cancelling it aborts
// in-flight processing for that participant.
func (d *Dispatcher) Dispatch(ctx context.Context, slot *Slot, src, dst Peer, pcm []byte, sampleRate int) bool {
	if !slot.busy.CompareAndSwap(false, true) {
		d.metrics.RecordDrop(ctx, "busy")
		slog.Debug("segment dropped, previous segment still in flight",
			slog.String("user", src.ID()))
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer slot.busy.Store(false)
		d.process(ctx, src, dst, pcm, sampleRate)
	}()
	return true
}

// Wait blocks until all in-flight segments have finished processing. Used
// during shutdown and by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, src, dst Peer, pcm []byte, sampleRate int) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// The segment deadline covers waiting for a worker too; a segment that
	// queues for 30 seconds is as stale as one that processed for 30.
	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.metrics.RecordDrop(ctx, "worker_wait")
		slog.Debug("segment dropped waiting for a worker",
			slog.String("user", src.ID()),
			slog.String("error", err.Error()))
		return
	}
	defer d.sem.Release(1)

	start := time.Now()
	out := d.translator.Translate(ctx, engine.Request{
		PCM:        pcm,
		SampleRate: sampleRate,
		SourceLang: src.Lang(),
		TargetLang: dst.Lang(),
	})
	d.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	d.metrics.RecordSegment(ctx, out.Kind.String())

	log := observe.Logger(ctx).With(
		slog.String("user", src.ID()),
		slog.String("peer", dst.ID()),
	)

	switch out.Kind {
	case engine.KindSilence, engine.KindHallucination:
		log.Debug("segment produced no deliverable speech",
			slog.String("outcome", out.Kind.String()))
		return
	case engine.KindEngineError:
		log.Error("segment processing failed",
			slog.String("error", out.Err.Error()),
			slog.Duration("took", time.Since(start)))
		return
	}

	if !dst.Connected() {
		d.metrics.RecordDrop(ctx, "peer_disconnected")
		log.Debug("discarding translation, peer disconnected")
		return
	}

	// A speech outcome without audio means synthesis failed. Captions are
	// never delivered on their own: half a translation mid-call reads as a
	// glitch, so the whole segment is dropped.
	if out.Audio == nil {
		d.metrics.RecordDrop(ctx, "no_audio")
		log.Warn("discarding translation, synthesis produced no audio",
			slog.String("source_lang", src.Lang()),
			slog.String("target_lang", dst.Lang()))
		return
	}

	// Audio first so playback can begin before the caption renders.
	if err := dst.SendAudio(ctx, out.Audio); err != nil {
		logSendFailure(log, "audio", err)
		return
	}
	if err := dst.SendCaption(ctx, Caption{
		SourceText:     out.SourceText,
		TranslatedText: out.TranslatedText,
	}); err != nil {
		logSendFailure(log, "caption", err)
		return
	}

	log.Info("translation delivered",
		slog.String("source_lang", src.Lang()),
		slog.String("target_lang", dst.Lang()),
		slog.Int("audio_bytes", len(out.Audio)),
		slog.Duration("took", time.Since(start)))
}

// logSendFailure records a failed delivery. A send that fails here means the
// peer hung up or the segment deadline passed mid-delivery; both are routine
// during call teardown, so these log at debug rather than error.
func logSendFailure(log *slog.Logger, what string, err error) {
	msg := "delivery failed, peer transport closed"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		msg = "delivery aborted"
	}
	log.Debug(msg, slog.String("frame", what), slog.String("error", err.Error()))
}
