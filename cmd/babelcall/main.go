// Command babelcall is the main entry point for the Babelcall live call
// translation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/babelcall/internal/config"
	"github.com/MrWong99/babelcall/internal/dispatch"
	"github.com/MrWong99/babelcall/internal/engine/cascade"
	"github.com/MrWong99/babelcall/internal/health"
	"github.com/MrWong99/babelcall/internal/observe"
	"github.com/MrWong99/babelcall/internal/resilience"
	"github.com/MrWong99/babelcall/internal/room"
	"github.com/MrWong99/babelcall/internal/segment"
	"github.com/MrWong99/babelcall/internal/server"
	"github.com/MrWong99/babelcall/pkg/provider/mt"
	"github.com/MrWong99/babelcall/pkg/provider/mt/anyllm"
	"github.com/MrWong99/babelcall/pkg/provider/stt"
	"github.com/MrWong99/babelcall/pkg/provider/stt/whisper"
	"github.com/MrWong99/babelcall/pkg/provider/tts"
	"github.com/MrWong99/babelcall/pkg/provider/tts/coqui"
	oaitts "github.com/MrWong99/babelcall/pkg/provider/tts/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Configuration with hot reload ─────────────────────────────────────────
	// Log level and segmenter tuning are applied on file change; everything
	// else requires a restart. Segmenter changes affect new connections only.
	levelVar := new(slog.LevelVar)
	var segCfg atomic.Pointer[config.SegmenterConfig]

	watcher, err := config.NewWatcher(*configPath, func(_, updated *config.Config) {
		d := config.Diff(watcherCurrent(&segCfg, levelVar), updated)
		if d.LogLevelChanged {
			levelVar.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.SegmenterChanged {
			sc := d.NewSegmenter
			segCfg.Store(&sc)
			slog.Info("segmenter settings changed",
				"energy_threshold", sc.EnergyThreshold,
				"silence_threshold", sc.SilenceThreshold,
			)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "babelcall: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "babelcall: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()

	cfg := watcher.Current()
	sc := cfg.Segmenter
	segCfg.Store(&sc)

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("babelcall starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "babelcall",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	sttP, mtP, ttsP, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if c, ok := sttP.(io.Closer); ok {
		defer c.Close()
	}

	// ── Translation engine ────────────────────────────────────────────────────
	eng := cascade.New(sttP, mtP, ttsP,
		cascade.WithMetrics(metrics),
		cascade.WithProviderNames(cfg.Providers.STT.Name, cfg.Providers.MT.Name, cfg.Providers.TTS.Name),
	)

	if pairs := warmupPairs(cfg.Pipeline.WarmupPairs); len(pairs) > 0 {
		warmupCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		eng.Warmup(warmupCtx, pairs)
		cancel()
	}

	// ── Rooms, dispatch, WebSocket server ─────────────────────────────────────
	registry := room.NewRegistry[*server.Session]()

	dispatcher := dispatch.New(eng,
		dispatch.WithTimeout(cfg.Pipeline.Timeout),
		dispatch.WithWorkers(cfg.Pipeline.Workers),
		dispatch.WithMetrics(metrics),
	)

	newSegmenter := func() *segment.Segmenter {
		sc := segCfg.Load()
		return segment.New(segment.Config{
			SilenceThreshold:  sc.SilenceThreshold,
			MinSpeechDuration: sc.MinSpeechDuration,
			MaxSpeechDuration: sc.MaxSpeechDuration,
		}, sc.EnergyThreshold)
	}

	wsServer := server.New(registry, dispatcher, newSegmenter,
		server.WithHandshakeTimeout(cfg.Server.HandshakeTimeout),
		server.WithSampleRate(cfg.Segmenter.SampleRate),
		server.WithMetrics(metrics),
		server.WithOriginPatterns(cfg.Server.OriginPatterns),
	)

	// ── HTTP mux ──────────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	wsServer.Register(mux)
	health.New(registry.Snapshot,
		health.Checker{Name: "stt", Check: stageCheck(sttP)},
		health.Checker{Name: "mt", Check: stageCheck(mtP)},
		health.Checker{Name: "tts", Check: stageCheck(ttsP)},
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	// ── Serve until signalled ─────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tlsCfg := cfg.Server.TLS; tlsCfg != nil {
			err = httpSrv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// Let in-flight segments finish before tearing down the providers.
	dispatcher.Wait()
	slog.Info("goodbye")
	return 0
}

// watcherCurrent reconstructs the last applied reloadable settings so the
// config diff compares against what is actually in effect, not against the
// previous file contents.
func watcherCurrent(segCfg *atomic.Pointer[config.SegmenterConfig], levelVar *slog.LevelVar) *config.Config {
	cur := &config.Config{}
	if sc := segCfg.Load(); sc != nil {
		cur.Segmenter = *sc
	}
	switch levelVar.Level() {
	case slog.LevelDebug:
		cur.Server.LogLevel = config.LogDebug
	case slog.LevelWarn:
		cur.Server.LogLevel = config.LogWarn
	case slog.LevelError:
		cur.Server.LogLevel = config.LogError
	default:
		cur.Server.LogLevel = config.LogInfo
	}
	return cur
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.Model, opts...)
	})

	// ── MT ────────────────────────────────────────────────────────────────────
	// All MT backends go through any-llm-go; the provider name selects the
	// backend, and local servers (ollama, llamacpp, …) use BaseURL instead of
	// an API key.
	for _, providerName := range config.ValidProviderNames["mt"] {
		reg.RegisterMT(providerName, func(entry config.ProviderEntry) (mt.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if speaker := optString(entry.Options, "speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		return coqui.New(entry.BaseURL, opts...), nil
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oaitts.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, oaitts.WithVoice(voice))
		}
		return oaitts.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates the three pipeline stages named in cfg. All
// three are mandatory; config validation has already checked the names are
// present.
func buildProviders(cfg *config.Config, reg *config.Registry) (stt.Provider, mt.Provider, tts.Provider, error) {
	sttP, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	mtP, err := reg.CreateMT(cfg.Providers.MT)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create mt provider %q: %w", cfg.Providers.MT.Name, err)
	}
	slog.Info("provider created", "kind", "mt", "name", cfg.Providers.MT.Name)

	ttsP, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	// Optional failover chains wrap each stage with per-backend circuit
	// breakers.
	fbCfg := resilience.FallbackConfig{}

	if entries := cfg.Providers.Fallbacks.STT; len(entries) > 0 {
		fb := resilience.NewSTTFallback(sttP, cfg.Providers.STT.Name, fbCfg)
		for _, entry := range entries {
			p, err := reg.CreateSTT(entry)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
			}
			fb.AddFallback(entry.Name, p)
			slog.Info("fallback registered", "kind", "stt", "name", entry.Name)
		}
		sttP = fb
	}

	if entries := cfg.Providers.Fallbacks.MT; len(entries) > 0 {
		fb := resilience.NewMTFallback(mtP, cfg.Providers.MT.Name, fbCfg)
		for _, entry := range entries {
			p, err := reg.CreateMT(entry)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("create mt fallback %q: %w", entry.Name, err)
			}
			fb.AddFallback(entry.Name, p)
			slog.Info("fallback registered", "kind", "mt", "name", entry.Name)
		}
		mtP = fb
	}

	if entries := cfg.Providers.Fallbacks.TTS; len(entries) > 0 {
		fb := resilience.NewTTSFallback(ttsP, cfg.Providers.TTS.Name, fbCfg)
		for _, entry := range entries {
			p, err := reg.CreateTTS(entry)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
			}
			fb.AddFallback(entry.Name, p)
			slog.Info("fallback registered", "kind", "tts", "name", entry.Name)
		}
		ttsP = fb
	}

	return sttP, mtP, ttsP, nil
}

// warmupPairs parses the configured "src:target" pairs. Validation has
// already rejected malformed entries, so parse errors are skipped silently.
func warmupPairs(raw []string) [][2]string {
	pairs := make([][2]string, 0, len(raw))
	for _, p := range raw {
		src, dst, err := config.SplitLangPair(p)
		if err != nil {
			continue
		}
		pairs = append(pairs, [2]string{src, dst})
	}
	return pairs
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Babelcall — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("MT", cfg.Providers.MT.Name, cfg.Providers.MT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Warmup pairs    : %-19d ║\n", len(cfg.Pipeline.WarmupPairs))
	fmt.Printf("║  Workers         : %-19d ║\n", cfg.Pipeline.Workers)
	if cfg.Server.TLS != nil {
		fmt.Printf("║  TLS             : %-19s ║\n", "enabled")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// stageCheck reports a pipeline stage as ready when its provider exists.
// Construction failures abort startup before the server listens, so a serving
// process passes; the named entries give /readyz per-stage visibility.
func stageCheck(p any) func(context.Context) error {
	return func(context.Context) error {
		if p == nil {
			return errors.New("provider not configured")
		}
		return nil
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
