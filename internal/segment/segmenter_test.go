package segment_test

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/babelcall/internal/segment"
)

// fakeClock advances by step on every read, simulating chunk arrival pacing.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

// loudChunk is 100 ms of constant high-amplitude signal at 16 kHz.
func loudChunk() []byte {
	buf := make([]byte, 1600*2)
	for i := 0; i < 1600; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(5000)))
	}
	return buf
}

// quietChunk is 100 ms of silence at 16 kHz.
func quietChunk() []byte {
	return make([]byte, 1600*2)
}

func newTestSegmenter(clock *fakeClock) *segment.Segmenter {
	return segment.New(segment.Config{
		SilenceThreshold:  time.Second,
		MinSpeechDuration: 500 * time.Millisecond,
		MaxSpeechDuration: 10 * time.Second,
	}, 200, segment.WithClock(clock.now))
}

func feed(t *testing.T, s *segment.Segmenter, chunk []byte, n int) ([]byte, bool) {
	t.Helper()
	for i := 0; i < n; i++ {
		if seg, ok := s.AddChunk(chunk); ok {
			return seg, true
		}
	}
	return nil, false
}

func TestSegmenter_EmitsAfterSilence(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	s := newTestSegmenter(clock)

	// 1s of speech, then silence until the threshold trips.
	if _, ok := feed(t, s, loudChunk(), 10); ok {
		t.Fatal("segment emitted during continuous speech")
	}
	seg, ok := feed(t, s, quietChunk(), 15)
	if !ok {
		t.Fatal("no segment emitted after silence threshold")
	}
	// The segment contains the speech chunks plus buffered trailing silence.
	if len(seg) < 10*len(loudChunk()) {
		t.Errorf("segment too small: got %d bytes, want at least %d", len(seg), 10*len(loudChunk()))
	}
}

func TestSegmenter_DiscardsShortSpeech(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	s := newTestSegmenter(clock)

	// Only 200 ms of speech — below the 500 ms minimum.
	if _, ok := feed(t, s, loudChunk(), 2); ok {
		t.Fatal("unexpected emit during speech")
	}
	if _, ok := feed(t, s, quietChunk(), 20); ok {
		t.Fatal("short segment should be discarded, not emitted")
	}

	// The segmenter must accept a fresh utterance afterwards.
	feed(t, s, loudChunk(), 10)
	if _, ok := feed(t, s, quietChunk(), 15); !ok {
		t.Fatal("segmenter did not recover after discarding a short segment")
	}
}

func TestSegmenter_ForcedEmitAtMaxDuration(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	s := newTestSegmenter(clock)

	// Continuous speech with no pause: must force-flush at MaxSpeechDuration
	// (10 s = 100 chunks at 100 ms per chunk).
	seg, ok := feed(t, s, loudChunk(), 150)
	if !ok {
		t.Fatal("no forced emit despite continuous speech past the cap")
	}
	if len(seg) < 90*len(loudChunk()) {
		t.Errorf("forced segment unexpectedly small: %d bytes", len(seg))
	}
}

func TestSegmenter_LeadingSilenceIgnored(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	s := newTestSegmenter(clock)

	if _, ok := feed(t, s, quietChunk(), 50); ok {
		t.Fatal("silence alone must never produce a segment")
	}
}

func TestSegmenter_Reset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	s := newTestSegmenter(clock)

	feed(t, s, loudChunk(), 10)
	s.Reset()

	// Buffered speech was cleared: silence afterwards emits nothing.
	if _, ok := feed(t, s, quietChunk(), 20); ok {
		t.Fatal("segment emitted from state that was reset")
	}
}

func TestSegmenter_SubSampleChunkIsSilence(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	s := newTestSegmenter(clock)

	feed(t, s, loudChunk(), 10)
	// Chunks shorter than one sample pair have zero energy and count as
	// silence toward ending the utterance.
	var emitted bool
	for i := 0; i < 15; i++ {
		if _, ok := s.AddChunk([]byte{0x01}); ok {
			emitted = true
			break
		}
	}
	if !emitted {
		t.Fatal("sub-sample chunks were not treated as silence")
	}
}

// errDetector always fails, exercising the fail-open policy.
type errDetector struct{}

func (errDetector) Classify([]byte) (bool, error) {
	return false, errors.New("model crashed")
}

func TestSegmenter_DetectorFailureFailsOpen(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	s := segment.New(segment.Config{
		SilenceThreshold:  time.Second,
		MinSpeechDuration: 500 * time.Millisecond,
		MaxSpeechDuration: 2 * time.Second,
	}, 200, segment.WithClock(clock.now), segment.WithDetector(errDetector{}))

	// Every chunk classifies as speech under fail-open, so the max-duration
	// cap is the only way out.
	if _, ok := feed(t, s, quietChunk(), 30); !ok {
		t.Fatal("fail-open detector should accumulate speech until forced emit")
	}
}

func TestEnergyDetector(t *testing.T) {
	d := segment.EnergyDetector{Threshold: 200}

	if speech, _ := d.Classify(loudChunk()); !speech {
		t.Error("loud chunk classified as silence")
	}
	if speech, _ := d.Classify(quietChunk()); speech {
		t.Error("silent chunk classified as speech")
	}
	if speech, _ := d.Classify([]byte{0x7f}); speech {
		t.Error("sub-sample chunk classified as speech")
	}
}
