// Package segment turns a raw PCM chunk stream into utterance-level segments.
//
// The Segmenter accumulates audio while a speaker is talking and emits the
// buffered bytes once enough trailing silence is observed, discarding spans
// too short to be real speech. Speech/silence classification is delegated to
// a pluggable Detector so a model-based VAD can replace the default
// energy heuristic without touching the dispatch or connection layers.
package segment

import "github.com/MrWong99/babelcall/pkg/audio"

// Detector classifies a single PCM chunk as speech or silence.
//
// Implementations must be cheap enough to run synchronously on the
// connection's receive path and must not retain the chunk slice.
// A Detector is owned by one Segmenter and is not called concurrently.
type Detector interface {
	// Classify reports whether chunk contains speech. An error indicates the
	// detector could not analyse the chunk (malformed input, backend failure);
	// the Segmenter fails open and treats such chunks as speech so that real
	// utterances are never lost to a detector fault.
	Classify(chunk []byte) (speech bool, err error)
}

// EnergyDetector is the default Detector: root-mean-square energy of the
// 16-bit PCM samples compared against a fixed floor.
//
// The threshold is expressed in PCM sample units (0–32 767); usable values
// for typical microphones sit in the 50–500 range and should be tuned per
// environment. Chunks shorter than one sample have zero energy and always
// classify as silence.
type EnergyDetector struct {
	// Threshold is the RMS floor separating silence from speech.
	Threshold float64
}

// Classify implements Detector. It never returns an error.
func (d EnergyDetector) Classify(chunk []byte) (bool, error) {
	return audio.RMS(chunk) >= d.Threshold, nil
}
