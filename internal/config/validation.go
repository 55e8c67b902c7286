// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"

	"github.com/ManuGH/dramarelay/internal/catalog"
	"github.com/ManuGH/dramarelay/internal/validate"
)

// reservedPrefixes cannot host the relay.
var reservedPrefixes = []string{"/api", "/catalog", "/healthz", "/readyz", "/metrics", "/openapi.yaml"}

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	// Server
	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.Duration("server.readHeaderTimeout", cfg.Server.ReadHeaderTimeout)
	v.Duration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)
	if cfg.Server.StaticDir != "" {
		v.ExistingDirectory("server.staticDir", cfg.Server.StaticDir)
	}
	v.NonNegative("server.rateLimit.requestsPerMinute", cfg.Server.RateLimit.RequestsPerMinute)
	v.IPOrCIDR("server.rateLimit.whitelist", cfg.Server.RateLimit.Whitelist)
	forbidCatchAll(v, "server.rateLimit.whitelist", cfg.Server.RateLimit.Whitelist)

	// Relay
	validateRelayPath(v, cfg.Relay.Path)
	// Relay targets carry their host, so the base is a bare scheme.
	v.OneOf("relay.upstreamBaseUrl", strings.ToLower(cfg.Relay.UpstreamBaseURL), []string{"http://", "https://"})
	v.Duration("relay.requestTimeout", cfg.Relay.RequestTimeout)
	if cfg.Relay.MaxManifestBytes <= 0 {
		v.AddError("relay.maxManifestBytes", "value must be positive", cfg.Relay.MaxManifestBytes)
	}

	// Catalog
	v.URL("catalog.dramabox.baseUrl", cfg.Catalog.DramaBox.BaseURL, []string{"http", "https"})
	v.URL("catalog.shortmax.baseUrl", cfg.Catalog.ShortMax.BaseURL, []string{"http", "https"})
	v.OneOf("catalog.defaultPlatform", cfg.Catalog.DefaultPlatform, []string{catalog.PlatformDramaBox, catalog.PlatformShortMax})
	v.Duration("catalog.requestTimeout", cfg.Catalog.RequestTimeout)
	v.Duration("catalog.cacheTtl", cfg.Catalog.CacheTTL)
	if cfg.Catalog.RateLimit.Rate < 0 {
		v.AddError("catalog.rateLimit.rate", "value cannot be negative", cfg.Catalog.RateLimit.Rate)
	}
	if cfg.Catalog.RateLimit.Rate > 0 {
		v.Positive("catalog.rateLimit.burst", cfg.Catalog.RateLimit.Burst)
		v.Duration("catalog.rateLimit.maxWait", cfg.Catalog.RateLimit.MaxWait)
	}
	v.Range("catalog.breaker.threshold", cfg.Catalog.Breaker.Threshold, 1, 1000)
	v.Duration("catalog.breaker.resetTimeout", cfg.Catalog.Breaker.ResetTimeout)

	// Cache
	v.OneOf("cache.backend", cfg.Cache.Backend, []string{CacheMemory, CacheRedis, CacheNone})
	switch cfg.Cache.Backend {
	case CacheRedis:
		v.ListenAddr("cache.redis.addr", cfg.Cache.Redis.Addr)
		v.Range("cache.redis.db", cfg.Cache.Redis.DB, 0, 15)
	case CacheMemory:
		v.Duration("cache.cleanupInterval", cfg.Cache.CleanupInterval)
	}

	// Logging
	v.LogLevel("log.level", cfg.Log.Level)
	v.OneOf("log.format", strings.ToLower(cfg.Log.Format), []string{"json", "console"})

	// Telemetry
	if cfg.Telemetry.Enabled {
		v.NotEmpty("telemetry.serviceName", cfg.Telemetry.ServiceName)
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.Fraction("telemetry.samplingRate", cfg.Telemetry.SamplingRate)
	}

	return v.Err()
}

func validateRelayPath(v *validate.Validator, path string) {
	if !strings.HasPrefix(path, "/") || path == "/" {
		v.AddError("relay.path", "must be an absolute path other than /", path)
		return
	}
	if strings.ContainsAny(path, "?#") {
		v.AddError("relay.path", "must not contain a query or fragment", path)
		return
	}
	for _, p := range reservedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			v.AddError("relay.path", "collides with a built-in route", path)
			return
		}
	}
}
