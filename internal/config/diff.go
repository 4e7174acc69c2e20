package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: provider and
// network changes require a restart.
type ConfigDiff struct {
	// LogLevelChanged is true when server.log_level changed; NewLogLevel
	// holds the new value.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SegmenterChanged is true when any segmentation parameter changed.
	// NewSegmenter holds the full new block; it applies to connections
	// opened after the change, not to calls already in progress.
	SegmenterChanged bool
	NewSegmenter     SegmenterConfig
}

// Empty reports whether the diff contains no applicable changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SegmenterChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !segmenterEqual(old.Segmenter, new.Segmenter) {
		d.SegmenterChanged = true
		d.NewSegmenter = new.Segmenter
	}

	return d
}

// segmenterEqual compares two segmenter blocks field by field.
func segmenterEqual(a, b SegmenterConfig) bool {
	return a.EnergyThreshold == b.EnergyThreshold &&
		a.SilenceThreshold == b.SilenceThreshold &&
		a.MinSpeechDuration == b.MinSpeechDuration &&
		a.MaxSpeechDuration == b.MaxSpeechDuration &&
		a.SampleRate == b.SampleRate
}
