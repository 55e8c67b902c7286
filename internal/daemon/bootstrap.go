// SPDX-License-Identifier: MIT

// Package daemon wires the gateway components together and manages the
// server lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/dramarelay/internal/api"
	"github.com/ManuGH/dramarelay/internal/api/middleware"
	"github.com/ManuGH/dramarelay/internal/cache"
	"github.com/ManuGH/dramarelay/internal/catalog"
	"github.com/ManuGH/dramarelay/internal/config"
	"github.com/ManuGH/dramarelay/internal/health"
	drlog "github.com/ManuGH/dramarelay/internal/log"
	"github.com/ManuGH/dramarelay/internal/platform/httpx"
	"github.com/ManuGH/dramarelay/internal/ratelimit"
	"github.com/ManuGH/dramarelay/internal/relay"
	"github.com/ManuGH/dramarelay/internal/telemetry"
)

// Runtime holds the wired gateway components.
type Runtime struct {
	Handler http.Handler
	Health  *health.Manager
	Catalog *catalog.Client
	Relay   *relay.Relay

	telemetry *telemetry.Provider
	store     cache.Cache
	logger    zerolog.Logger
}

// Bootstrap builds every component from cfg. On error, anything already
// started is released.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (_ *Runtime, err error) {
	r := &Runtime{logger: drlog.WithComponent("daemon")}
	defer func() {
		if err != nil {
			_ = r.Close(context.WithoutCancel(ctx))
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("telemetry initialization failed, continuing without tracing")
		err = nil
	} else {
		r.telemetry = tp
		if cfg.Telemetry.Enabled {
			r.logger.Info().
				Str("service", cfg.Telemetry.ServiceName).
				Str("endpoint", cfg.Telemetry.Endpoint).
				Float64("sampling_rate", cfg.Telemetry.SamplingRate).
				Msg("telemetry initialized")
		}
	}

	r.Health = health.NewManager(cfg.Version)

	store, err := newCache(ctx, cfg.Cache, r.Health)
	if err != nil {
		return nil, err
	}
	r.store = store

	limiter := ratelimit.New(ratelimit.Config{
		Rate:    rate.Limit(cfg.Catalog.RateLimit.Rate),
		Burst:   cfg.Catalog.RateLimit.Burst,
		MaxWait: cfg.Catalog.RateLimit.MaxWait,
	})
	r.Catalog = catalog.NewClient(
		httpx.NewClient(cfg.Catalog.RequestTimeout),
		store,
		limiter,
		catalog.ClientConfig{
			CacheTTL:         cfg.Catalog.CacheTTL,
			BreakerThreshold: cfg.Catalog.Breaker.Threshold,
			BreakerReset:     cfg.Catalog.Breaker.ResetTimeout,
		},
		drlog.WithComponent("catalog"),
		providers(cfg.Catalog)...,
	)
	r.Health.RegisterChecker(health.NewOptionalChecker("catalog", r.Catalog.CheckBreakers))
	r.Health.RegisterChecker(health.NewDirChecker("ui", cfg.Server.StaticDir))

	r.Relay, err = relay.New(relay.Config{
		UpstreamBaseURL:  cfg.Relay.UpstreamBaseURL,
		RequestTimeout:   cfg.Relay.RequestTimeout,
		RelayPath:        cfg.Relay.Path,
		MaxManifestBytes: cfg.Relay.MaxManifestBytes,
		UserAgent:        cfg.Relay.UserAgent,
		AllowedHosts:     cfg.Relay.AllowedHosts,
	}, httpx.NewStreamingClient(cfg.Relay.RequestTimeout), drlog.WithComponent("relay"))
	if err != nil {
		return nil, err
	}

	adapters := catalog.NewCatalog(
		catalog.NewDramaBoxAdapter(r.Catalog),
		catalog.NewShortMaxAdapter(r.Catalog, cfg.Relay.Path, catalog.WithUpstreamBase(r.Relay.Config().UpstreamBaseURL)),
	)

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = cfg.Telemetry.ServiceName
	}

	r.Handler, err = api.NewRouter(api.Deps{
		Relay:     r.Relay,
		Proxy:     catalog.NewProxyHandler(r.Catalog, api.APIPrefix, cfg.Catalog.DefaultPlatform),
		Catalog:   catalog.NewHandler(adapters, drlog.WithComponent("catalog")).Routes(),
		Health:    r.Health,
		StaticDir: cfg.Server.StaticDir,
		Stack: middleware.StackConfig{
			AllowedOrigins:        cfg.Server.CORSOrigins,
			EnableSecurityHeaders: cfg.Server.SecurityHeaders,
			EnableMetrics:         true,
			TracingService:        tracingService,
			EnableLogging:         true,
			RateLimitRequests:     cfg.Server.RateLimit.RequestsPerMinute,
			RateLimitWhitelist:    cfg.Server.RateLimit.Whitelist,
		},
		Logger: r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	return r, nil
}

func newCache(ctx context.Context, cfg config.CacheConfig, hm *health.Manager) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, drlog.WithComponent("cache"))
		if err != nil {
			return nil, err
		}
		hm.RegisterChecker(health.NewFuncChecker("redis", rc.HealthCheck))
		return rc, nil
	case config.CacheNone:
		return cache.NoOpCache{}, nil
	default:
		return cache.NewMemoryCache(cfg.CleanupInterval), nil
	}
}

func providers(cfg config.CatalogConfig) []catalog.Provider {
	return []catalog.Provider{
		catalog.DramaBox(cfg.DramaBox.BaseURL, cfg.DramaBox.Token),
		catalog.ShortMax(cfg.ShortMax.BaseURL, cfg.ShortMax.Token),
	}
}

// ApplyConfig applies the hot-reloadable subset of cfg: catalog provider
// endpoints and credentials plus the log level.
func (rt *Runtime) ApplyConfig(cfg config.AppConfig) {
	rt.Catalog.SetProviders(providers(cfg.Catalog)...)
	if err := drlog.SetLevel(strings.ToLower(cfg.Log.Level)); err != nil {
		rt.logger.Warn().Err(err).Str("level", cfg.Log.Level).Msg("ignoring invalid log level")
	}
	rt.logger.Info().Str(drlog.FieldEvent, "config.applied").Msg("applied reloaded configuration")
}

// RegisterShutdownHooks releases runtime resources when m shuts down.
func (rt *Runtime) RegisterShutdownHooks(m Manager) {
	m.RegisterShutdownHook("runtime", rt.Close)
}

// Close releases the cache and flushes telemetry.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if rt.telemetry != nil {
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
