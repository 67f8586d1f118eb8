// Package app assembles the resize service from configuration. Both the
// HTTP server and the Lambda entrypoint share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dunamismax/pixelshift/internal/api"
	"github.com/dunamismax/pixelshift/internal/config"
	"github.com/dunamismax/pixelshift/internal/pipeline"
	"github.com/dunamismax/pixelshift/internal/ratelimit"
	"github.com/dunamismax/pixelshift/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Server  *api.Server
	Backend string

	logger        zerolog.Logger
	redis         *redis.Client
	stopTelemetry telemetry.ShutdownFunc
}

func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	stopTelemetry, err := telemetry.SetupTracing(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	a := &App{logger: logger, stopTelemetry: stopTelemetry}

	if err := pipeline.Startup(pipeline.RuntimeConfig{
		Concurrency:  cfg.Vips.Concurrency,
		MaxCacheMem:  cfg.Vips.MaxCacheMem,
		MaxCacheSize: cfg.Vips.MaxCacheSize,
	}, logger.With().Str("component", "vips").Logger()); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("start image runtime: %w", err)
	}

	processor, err := pipeline.NewProcessor()
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Backend = processor.Backend()

	opts := api.Options{
		MaxBodyBytes: cfg.API.MaxBodyBytes,
		CORS: api.CORSPolicy{
			AllowedOrigin:  cfg.CORS.AllowedOrigin,
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
			MaxAgeSeconds:  cfg.CORS.MaxAgeSeconds,
		},
		TrustedProxies: cfg.RateLimit.TrustedProxies,
	}

	if cfg.RateLimit.Enabled {
		a.redis = redis.NewClient(cfg.RateLimit.RedisOptions())
		limiter, err := ratelimit.NewBucket(a.redis, ratelimit.Limits{
			Burst:     cfg.RateLimit.Requests,
			Window:    cfg.RateLimit.Window,
			KeyPrefix: cfg.RateLimit.KeyPrefix,
		})
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("build rate limiter: %w", err)
		}
		opts.RateLimiter = limiter
	}

	a.Server = api.NewServer(logger, processor, opts)
	logger.Info().
		Str("backend", a.Backend).
		Bool("rate_limit", cfg.RateLimit.Enabled).
		Str("exporter", cfg.Telemetry.Exporter).
		Msg("service assembled")
	return a, nil
}

func (a *App) Handler() http.Handler {
	return a.Server.Handler()
}

// Close flushes traces, drops the Redis pool and shuts libvips down.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.stopTelemetry != nil {
		if err := a.stopTelemetry(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	pipeline.Shutdown()
	return errors.Join(errs...)
}
