// Package config provides the configuration schema, loader, provider
// registry, and file watcher for the Babelcall translation server.
package config

import "time"

// LogLevel controls log verbosity for the Babelcall server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Babelcall.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds network and logging settings for the Babelcall server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// HandshakeTimeout bounds how long a connecting client may take to
	// declare its language before the connection is closed.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// OriginPatterns lists allowed WebSocket origins for browser clients.
	// Empty means same-origin only.
	OriginPatterns []string `yaml:"origin_patterns"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// SegmenterConfig holds the voice-activity segmentation parameters applied to
// every participant's audio stream.
type SegmenterConfig struct {
	// EnergyThreshold is the RMS level above which a chunk counts as speech.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// SilenceThreshold is how long sub-threshold energy must persist after
	// speech before the utterance is considered finished.
	SilenceThreshold time.Duration `yaml:"silence_threshold"`

	// MinSpeechDuration is the shortest speech span worth translating.
	MinSpeechDuration time.Duration `yaml:"min_speech_duration"`

	// MaxSpeechDuration force-emits everything buffered so far when a
	// speaker never pauses.
	MaxSpeechDuration time.Duration `yaml:"max_speech_duration"`

	// SampleRate is the PCM sample rate expected from clients, in Hz.
	SampleRate int `yaml:"sample_rate"`
}

// PipelineConfig bounds the translation pipeline shared by all calls.
type PipelineConfig struct {
	// Timeout bounds one segment's trip through STT, MT, and TTS.
	Timeout time.Duration `yaml:"timeout"`

	// Workers is the size of the shared engine worker pool.
	Workers int `yaml:"workers"`

	// WarmupPairs lists language pairs to push through the MT stage at
	// startup so lazily loaded models are resident before the first call.
	// Each entry is "source:target" (e.g., "en:de").
	WarmupPairs []string `yaml:"warmup_pairs"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	MT  ProviderEntry `yaml:"mt"`
	TTS ProviderEntry `yaml:"tts"`

	// Fallbacks lists lower-priority backends per stage, tried in order when
	// the primary fails or its circuit breaker is open. Optional.
	Fallbacks FallbacksConfig `yaml:"fallbacks"`
}

// FallbacksConfig holds the optional fallback provider chains per stage.
type FallbacksConfig struct {
	STT []ProviderEntry `yaml:"stt"`
	MT  []ProviderEntry `yaml:"mt"`
	TTS []ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider. For whisper this
	// is the path to the GGML model file; for LLM-backed translation it is
	// the model name (e.g., "gpt-4o-mini", "llama3.2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// Default configuration values applied by [ApplyDefaults].
const (
	DefaultListenAddr        = ":8080"
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultEnergyThreshold   = 200
	DefaultSilenceThreshold  = 1200 * time.Millisecond
	DefaultMinSpeechDuration = 500 * time.Millisecond
	DefaultMaxSpeechDuration = 15 * time.Second
	DefaultSampleRate        = 16000
	DefaultPipelineTimeout   = 30 * time.Second
	DefaultPipelineWorkers   = 2
)

// ApplyDefaults fills zero-valued fields with production defaults. Called by
// [LoadFromReader] before validation so a minimal config file is enough to
// run.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Segmenter.EnergyThreshold == 0 {
		c.Segmenter.EnergyThreshold = DefaultEnergyThreshold
	}
	if c.Segmenter.SilenceThreshold == 0 {
		c.Segmenter.SilenceThreshold = DefaultSilenceThreshold
	}
	if c.Segmenter.MinSpeechDuration == 0 {
		c.Segmenter.MinSpeechDuration = DefaultMinSpeechDuration
	}
	if c.Segmenter.MaxSpeechDuration == 0 {
		c.Segmenter.MaxSpeechDuration = DefaultMaxSpeechDuration
	}
	if c.Segmenter.SampleRate == 0 {
		c.Segmenter.SampleRate = DefaultSampleRate
	}
	if c.Pipeline.Timeout == 0 {
		c.Pipeline.Timeout = DefaultPipelineTimeout
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = DefaultPipelineWorkers
	}
}
