// Command voicecloned is the main entry point for the voice cloning server.
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

	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/config"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/health"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/observe"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/pipeline"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/progress"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/resilience"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/server"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/voicestore"
	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/cloning/elevenlabs"
	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/extract/chrome"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicecloned: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicecloned: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("voicecloned starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voicecloned",
		ServiceVersion: version,
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

	// ── Extractor ─────────────────────────────────────────────────────────────
	extractor, err := chrome.New(chrome.Config{
		ConverterURL:     cfg.Extractor.ConverterURL,
		TempDir:          cfg.Extractor.TempDir,
		Stealth:          cfg.Extractor.StealthEnabled(),
		PageLoadTimeout:  cfg.Extractor.PageLoadTimeout.Std(),
		DownloadTimeout:  cfg.Extractor.DownloadTimeout.Std(),
		MaxDownloadBytes: cfg.Extractor.MaxDownloadBytes,
	})
	if err != nil {
		slog.Error("failed to create extractor", "err", err)
		return 1
	}

	// ── Cloning client ────────────────────────────────────────────────────────
	var elOpts []elevenlabs.Option
	if cfg.ElevenLabs.BaseURL != "" {
		elOpts = append(elOpts, elevenlabs.WithBaseURL(cfg.ElevenLabs.BaseURL))
	}
	if cfg.ElevenLabs.Model != "" {
		elOpts = append(elOpts, elevenlabs.WithModel(cfg.ElevenLabs.Model))
	}
	elClient, err := elevenlabs.New(cfg.ElevenLabs.APIKey, elOpts...)
	if err != nil {
		slog.Error("failed to create cloning client", "err", err)
		return 1
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "elevenlabs"})
	cloner := resilience.NewGuardedClient(elClient, breaker)

	// ── Voice registry ────────────────────────────────────────────────────────
	store, err := voicestore.Open(cfg.Store.Path)
	if err != nil {
		slog.Error("failed to open voice store", "path", cfg.Store.Path, "err", err)
		return 1
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	bus := progress.NewBroadcaster()
	orch, err := pipeline.New(pipeline.Config{
		Extractor:     extractor,
		Cloner:        cloner,
		Broadcaster:   bus,
		MaxConcurrent: cfg.Extractor.MaxConcurrent,
		Stealth:       cfg.Extractor.StealthEnabled(),
	})
	if err != nil {
		slog.Error("failed to create pipeline", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv, err := server.New(server.Config{
		Orchestrator: orch,
		Store:        store,
		Cloner:       cloner,
		Broadcaster:  bus,
		Health: health.New(
			health.StoreChecker(store),
			health.BreakerChecker(breaker),
		),
		Version: version,
	})
	if err != nil {
		slog.Error("failed to create server", "err", err)
		return 1
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		slog.Error("pipeline shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
