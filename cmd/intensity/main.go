package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	amqpadapter "github.com/couchcryptid/road-intensity-service/internal/adapter/amqp"
	"github.com/couchcryptid/road-intensity-service/internal/adapter/backend"
	httpadapter "github.com/couchcryptid/road-intensity-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/road-intensity-service/internal/adapter/kafka"
	"github.com/couchcryptid/road-intensity-service/internal/config"
	"github.com/couchcryptid/road-intensity-service/internal/observability"
	"github.com/couchcryptid/road-intensity-service/internal/pipeline"
	"github.com/couchcryptid/road-intensity-service/internal/render"
)

// source is a pipeline extractor that must be closed on shutdown.
type source interface {
	pipeline.BatchExtractor
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	registry, err := cfg.Registry()
	if err != nil {
		logger.Error("failed to build color scales", "error", err)
		os.Exit(1)
	}
	for _, kind := range registry.Kinds() {
		m, _ := registry.Get(kind)
		s := m.Scale()
		logger.Info("color scale ready", "kind", kind, "max", s.Max, "hue_range", s.HueRange, "step", s.Step)
	}

	reader, err := newSource(cfg, logger)
	if err != nil {
		logger.Error("failed to start snapshot source", "driver", cfg.SourceDriver, "error", err)
		os.Exit(1)
	}
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(registry, logger, metrics)

	frames := render.NewFrameClock(clockwork.NewRealClock(), cfg.FrameInterval)
	store := render.NewStore(render.NewLogLayer(logger), frames, logger, metrics, cfg.TopologyRadius)

	p := pipeline.New(reader, transformer, writer, store, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, registry, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The analysis backend is optional at runtime; report but do not fail.
	go checkBackend(ctx, cfg, metrics, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start styling pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("source close error", "driver", cfg.SourceDriver, "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func newSource(cfg *config.Config, logger *slog.Logger) (source, error) {
	switch cfg.SourceDriver {
	case config.SourceAMQP:
		return amqpadapter.NewReader(cfg, logger)
	default:
		return kafkaadapter.NewReader(cfg, logger), nil
	}
}

func checkBackend(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) {
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, metrics, logger)
	status, err := client.Status(ctx)
	if err != nil {
		logger.Warn("analysis backend unavailable", "url", cfg.BackendURL, "error", err)
		return
	}
	logger.Info("analysis backend reachable", "url", cfg.BackendURL, "status", status.Status, "version", status.Version)
}
