// Command livecaptions runs the live-captioning pipeline headless: captions
// are printed to stdout and published on the websocket feed; a desktop shell
// can attach through the same pipeline API instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmkbharathi/LiveCaptions/internal/config"
	"github.com/tmkbharathi/LiveCaptions/internal/feed"
	"github.com/tmkbharathi/LiveCaptions/internal/observe"
	"github.com/tmkbharathi/LiveCaptions/internal/pipeline"
	"github.com/tmkbharathi/LiveCaptions/internal/resilience"
	"github.com/tmkbharathi/LiveCaptions/internal/transcript"
	"github.com/tmkbharathi/LiveCaptions/internal/translate"
	"github.com/tmkbharathi/LiveCaptions/pkg/audio"
	filesource "github.com/tmkbharathi/LiveCaptions/pkg/audio/file"
	streamsource "github.com/tmkbharathi/LiveCaptions/pkg/audio/stream"
	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
	"github.com/tmkbharathi/LiveCaptions/pkg/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	settingsPath := flag.String("settings", "", "path to the user settings file (default: per-user config dir)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "livecaptions: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "livecaptions: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("livecaptions starting",
		"config", *configPath,
		"engine", cfg.Engine.Name,
		"source", cfg.Source.Name,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "livecaptions"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr)
	}

	// ── User settings ─────────────────────────────────────────────────────────
	sPath := *settingsPath
	if sPath == "" {
		if sPath, err = config.SettingsPath(); err != nil {
			slog.Warn("cannot resolve settings path, using defaults", "err", err)
		}
	}
	settings := config.DefaultSettings()
	if sPath != "" {
		settings = config.LoadSettings(sPath)
	}

	// ── Engine and source ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg)

	engine, err := reg.CreateEngine(cfg.Engine)
	if err != nil {
		slog.Error("failed to create engine", "name", cfg.Engine.Name, "err", err)
		return 1
	}
	source, err := reg.CreateSource(cfg.Source)
	if err != nil {
		slog.Error("failed to create source", "name", cfg.Source.Name, "err", err)
		return 1
	}

	// ── Optional collaborators ────────────────────────────────────────────────
	deps := pipeline.Deps{
		Source:  source,
		Engine:  engine,
		Metrics: metrics,
	}

	if dsn := cfg.Archive.PostgresDSN; dsn != "" {
		store, err := transcript.NewPostgresStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to open transcript archive", "err", err)
			return 1
		}
		deps.Store = store
		slog.Info("transcript archive connected")
	}

	if cfg.Translate.Provider != "" {
		var opts []anyllmlib.Option
		if cfg.Translate.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(cfg.Translate.APIKey))
		}
		if cfg.Translate.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.Translate.BaseURL))
		}
		tr, err := translate.NewLLM(cfg.Translate.Provider, cfg.Translate.Model, cfg.Translate.TargetLanguage, opts...)
		if err != nil {
			slog.Error("failed to create translator", "err", err)
			return 1
		}
		deps.Translator = tr
		slog.Info("caption translation enabled",
			"provider", cfg.Translate.Provider,
			"target", cfg.Translate.TargetLanguage,
		)
	}

	if cfg.Server.FeedAddr != "" {
		deps.Feed = feed.NewServer(cfg.Server.FeedAddr)
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	pipe, err := pipeline.New(cfg, settings, deps, stdoutCallbacks())
	if err != nil {
		slog.Error("failed to construct pipeline", "err", err)
		return 1
	}
	if sPath != "" {
		watcher := config.NewSettingsWatcher(sPath, func(_, updated *config.Settings) {
			pipe.ApplySettings(updated)
		})
		defer watcher.Stop()
	}

	if err := pipe.Initialize(ctx); err != nil {
		slog.Error("failed to initialise STT model", "err", err)
		return 1
	}
	if err := pipe.Start(ctx); err != nil {
		slog.Error("failed to start pipeline", "err", err)
		return 1
	}

	slog.Info("captioning — press Ctrl+C to stop")
	<-ctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := pipe.Stop(shCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Component wiring ──────────────────────────────────────────────────────────

// registerBuiltins wires the built-in engine and source factories into reg.
func registerBuiltins(reg *config.Registry) {
	reg.RegisterEngine("whisper-native", func(entry config.EngineEntry) (stt.Engine, error) {
		var opts []whisper.NativeOption
		if entry.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(entry.Language))
		}
		native := whisper.NewNative(opts...)
		if entry.FallbackBaseURL == "" {
			return native, nil
		}

		var serverOpts []whisper.ServerOption
		if entry.Language != "" {
			serverOpts = append(serverOpts, whisper.WithServerLanguage(entry.Language))
		}
		server, err := whisper.NewServer(entry.FallbackBaseURL, serverOpts...)
		if err != nil {
			return nil, err
		}
		chain := resilience.NewEngineFallback("whisper-native", native)
		chain.AddFallback("whisper-server", server)
		return chain, nil
	})

	reg.RegisterEngine("whisper-server", func(entry config.EngineEntry) (stt.Engine, error) {
		var opts []whisper.ServerOption
		if entry.Language != "" {
			opts = append(opts, whisper.WithServerLanguage(entry.Language))
		}
		return whisper.NewServer(entry.BaseURL, opts...)
	})

	reg.RegisterSource("file", func(entry config.SourceEntry) (audio.Source, error) {
		return filesource.New(entry.Path), nil
	})

	reg.RegisterSource("stream", func(entry config.SourceEntry) (audio.Source, error) {
		return streamsource.New(entry.ListenAddr), nil
	})
}

// stdoutCallbacks renders the two caption lines to the terminal.
func stdoutCallbacks() pipeline.Callbacks {
	return pipeline.Callbacks{
		SetLine1: func(s string) { fmt.Printf("\r\033[K%s\n", s) },
		SetLine2: func(s string) { fmt.Printf("\033[K%s\033[F", s) },
	}
}

// serveMetrics exposes the Prometheus bridge on addr at /metrics.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "err", err)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
