package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ocean-contour-service/internal/adapter/csvsource"
	httpadapter "github.com/couchcryptid/ocean-contour-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ocean-contour-service/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/ocean-contour-service/internal/adapter/redis"
	"github.com/couchcryptid/ocean-contour-service/internal/adapter/sqlitesource"
	"github.com/couchcryptid/ocean-contour-service/internal/config"
	"github.com/couchcryptid/ocean-contour-service/internal/geo"
	"github.com/couchcryptid/ocean-contour-service/internal/observability"
	"github.com/couchcryptid/ocean-contour-service/internal/pipeline"
	"github.com/joho/godotenv"
)

const serviceName = "ocean-contour-service"

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTelEndpoint, serviceName)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		return 1
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		logger.Error("invalid sample source", "error", err)
		return 1
	}

	coastline, err := geo.LoadCoastline(cfg.CoastlinePath)
	if err != nil {
		logger.Error("failed to load coastline", "path", cfg.CoastlinePath, "error", err)
		return 1
	}
	if coastline == nil {
		logger.Info("no coastline configured, land clipping disabled")
	} else {
		logger.Info("coastline loaded", "path", cfg.CoastlinePath, "polygons", len(coastline))
	}

	var options []pipeline.Option
	var writer *kafkaadapter.Writer
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkaadapter.NewWriter(cfg, logger)
		options = append(options, pipeline.WithSink(writer))
		logger.Info("kafka publication enabled", "topic", cfg.KafkaSinkTopic)
	}
	var mirror *redisadapter.Mirror
	if cfg.RedisAddr != "" {
		mirror = redisadapter.NewMirror(cfg, logger)
		if err := mirror.Ping(ctx); err != nil {
			logger.Warn("redis mirror unreachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		options = append(options, pipeline.WithMirror(mirror))
		logger.Info("redis mirror enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
	}

	svc := pipeline.New(cfg.PipelineOptions(), coastline, logger, metrics, options...)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Load samples and warm the cache.
	fatal := make(chan error, 1)
	go func() {
		if err := svc.Run(ctx, source); err != nil {
			fatal <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-fatal:
		logger.Error("pipeline error", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if mirror != nil {
		if err := mirror.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return exitCode
}

func newSource(cfg *config.Config, logger *slog.Logger) (pipeline.SampleSource, error) {
	switch format := cfg.SourceFormat(); format {
	case config.FormatCSV:
		return csvsource.NewReader(cfg.SamplesPath, logger), nil
	case config.FormatSQLite:
		return sqlitesource.NewReader(cfg.SamplesPath, cfg.SamplesTable, logger)
	default:
		return nil, fmt.Errorf("unsupported samples format %q", format)
	}
}
