package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per pipeline stage.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper"},
	"mt":  {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "lmstudio"},
	"tts": {"coqui", "openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.HandshakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.handshake_timeout must not be negative"))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, fmt.Errorf("server.tls requires both cert_file and key_file"))
		}
	}

	// Segmenter
	if cfg.Segmenter.EnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("segmenter.energy_threshold must not be negative"))
	}
	if cfg.Segmenter.SilenceThreshold <= 0 {
		errs = append(errs, fmt.Errorf("segmenter.silence_threshold must be positive"))
	}
	if cfg.Segmenter.MinSpeechDuration < 0 {
		errs = append(errs, fmt.Errorf("segmenter.min_speech_duration must not be negative"))
	}
	if cfg.Segmenter.MaxSpeechDuration < cfg.Segmenter.MinSpeechDuration {
		errs = append(errs, fmt.Errorf("segmenter.max_speech_duration %v is shorter than min_speech_duration %v",
			cfg.Segmenter.MaxSpeechDuration, cfg.Segmenter.MinSpeechDuration))
	}
	if cfg.Segmenter.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("segmenter.sample_rate must be positive"))
	}

	// Pipeline
	if cfg.Pipeline.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.timeout must be positive"))
	}
	if cfg.Pipeline.Workers <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be positive"))
	}
	for i, pair := range cfg.Pipeline.WarmupPairs {
		if _, _, err := SplitLangPair(pair); err != nil {
			errs = append(errs, fmt.Errorf("pipeline.warmup_pairs[%d]: %w", i, err))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("mt", cfg.Providers.MT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Fallback entries need a name to look up the factory.
	for stage, entries := range map[string][]ProviderEntry{
		"stt": cfg.Providers.Fallbacks.STT,
		"mt":  cfg.Providers.Fallbacks.MT,
		"tts": cfg.Providers.Fallbacks.TTS,
	} {
		for i, entry := range entries {
			if entry.Name == "" {
				errs = append(errs, fmt.Errorf("providers.fallbacks.%s[%d] requires a name", stage, i))
				continue
			}
			validateProviderName(stage, entry.Name)
		}
	}

	// Providers are mandatory: a translation server without a pipeline
	// cannot accept calls.
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, fmt.Errorf("providers.stt is required"))
	}
	if cfg.Providers.MT.Name == "" {
		errs = append(errs, fmt.Errorf("providers.mt is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, fmt.Errorf("providers.tts is required"))
	}

	return errors.Join(errs...)
}

// SplitLangPair parses a "source:target" language pair into its two codes.
func SplitLangPair(pair string) (source, target string, err error) {
	source, target, ok := strings.Cut(pair, ":")
	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)
	if !ok || source == "" || target == "" {
		return "", "", fmt.Errorf("language pair %q must be of the form \"source:target\"", pair)
	}
	return source, target, nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given stage.
func validateProviderName(stage, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[stage]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"stage", stage,
		"name", name,
		"known", known,
	)
}
