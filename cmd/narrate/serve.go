package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-narrate/internal/config"
	"github.com/example/go-narrate/internal/server"
	"github.com/example/go-narrate/internal/telemetry"
	"github.com/example/go-narrate/internal/tts"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC synthesis server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := slog.Default().With(slog.String("component", "serve"))

	engine, err := config.NormalizeEngine(cfg.TTS.Engine)
	if err != nil {
		return err
	}

	catalog, err := tts.OpenVoiceCatalog(cfg.Paths.Catalog)
	if err != nil {
		return fmt.Errorf("voice catalog: %w", err)
	}
	catalog.SetFallback(cfg.TTS.FallbackVoice, cfg.TTS.FallbackLang)

	factory, err := newEngineFactory(cfg.TTS, logger)
	if err != nil {
		return mapEngineError(err)
	}

	provider, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()
	metrics, err := telemetry.NewMetrics(provider.Meter())
	if err != nil {
		return err
	}

	registry := tts.NewRegistry(telemetry.TraceFactory(factory, provider.Tracer(), engine))
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn("close engines", slog.String("error", err.Error()))
		}
	}()

	responder := server.NewResponder(registry, catalog,
		server.WithDefaultVoice(cfg.TTS.Voice),
		server.WithSampleRate(cfg.TTS.SampleRate),
		server.WithMaxChars(cfg.TTS.MaxChars),
		server.WithResponderLogger(logger),
	)

	srv := server.New(cfg.Server, responder).
		WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second).
		WithTelemetry(provider.Handler(), metrics).
		WithLogger(logger)

	return srv.Start(ctx)
}
