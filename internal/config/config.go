// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/dramarelay/internal/catalog"
	"github.com/ManuGH/dramarelay/internal/relay"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	// Version is the binary version; never read from file or env.
	Version string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Relay     RelayConfig     `yaml:"relay"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	Listen            string        `yaml:"listen"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`

	// StaticDir serves a pre-built UI bundle when set.
	StaticDir       string           `yaml:"staticDir"`
	CORSOrigins     []string         `yaml:"corsOrigins"`
	SecurityHeaders bool             `yaml:"securityHeaders"`
	RateLimit       InboundRateLimit `yaml:"rateLimit"`
}

// InboundRateLimit limits requests per client IP. Zero disables it.
type InboundRateLimit struct {
	RequestsPerMinute int      `yaml:"requestsPerMinute"`
	Whitelist         []string `yaml:"whitelist"`
}

// RelayConfig configures the manifest rewriting relay.
type RelayConfig struct {
	Path             string        `yaml:"path"`
	UpstreamBaseURL  string        `yaml:"upstreamBaseUrl"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	MaxManifestBytes int64         `yaml:"maxManifestBytes"`
	UserAgent        string        `yaml:"userAgent"`
	AllowedHosts     []string      `yaml:"allowedHosts"`
}

// ProviderConfig holds one catalog provider's endpoint and credential.
type ProviderConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Token   string `yaml:"token"`
}

// CatalogConfig configures the catalog proxy and adapters.
type CatalogConfig struct {
	DramaBox        ProviderConfig    `yaml:"dramabox"`
	ShortMax        ProviderConfig    `yaml:"shortmax"`
	DefaultPlatform string            `yaml:"defaultPlatform"`
	RequestTimeout  time.Duration     `yaml:"requestTimeout"`
	CacheTTL        time.Duration     `yaml:"cacheTtl"`
	RateLimit       OutboundRateLimit `yaml:"rateLimit"`
	Breaker         BreakerConfig     `yaml:"breaker"`
}

// OutboundRateLimit is a token bucket per provider.
type OutboundRateLimit struct {
	Rate    float64       `yaml:"rate"`
	Burst   int           `yaml:"burst"`
	MaxWait time.Duration `yaml:"maxWait"`
}

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"resetTimeout"`
}

// CacheConfig selects the catalog response cache.
type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	Environment  string  `yaml:"environment"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Listen:            ":3000",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   15 * time.Second,
			SecurityHeaders:   true,
		},
		Relay: RelayConfig{
			Path:             relay.DefaultRelayPath,
			UpstreamBaseURL:  relay.DefaultUpstreamBaseURL,
			RequestTimeout:   relay.DefaultRequestTimeout,
			MaxManifestBytes: relay.DefaultMaxManifestBytes,
		},
		Catalog: CatalogConfig{
			DramaBox:        ProviderConfig{BaseURL: catalog.DefaultDramaBoxURL},
			ShortMax:        ProviderConfig{BaseURL: catalog.DefaultShortMaxURL},
			DefaultPlatform: catalog.PlatformDramaBox,
			RequestTimeout:  10 * time.Second,
			CacheTTL:        5 * time.Minute,
			RateLimit: OutboundRateLimit{
				Rate:    10,
				Burst:   20,
				MaxWait: 2 * time.Second,
			},
			Breaker: BreakerConfig{
				Threshold:    5,
				ResetTimeout: 30 * time.Second,
			},
		},
		Cache: CacheConfig{
			Backend:         CacheMemory,
			CleanupInterval: time.Minute,
			Redis:           RedisConfig{Prefix: "dramarelay:"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "dramarelay",
			Environment:  "production",
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Insecure:     true,
			SamplingRate: 1.0,
		},
	}
}

// Redacted returns a copy with secrets masked, for printing.
func (c AppConfig) Redacted() AppConfig {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.Catalog.DramaBox.Token = mask(c.Catalog.DramaBox.Token)
	c.Catalog.ShortMax.Token = mask(c.Catalog.ShortMax.Token)
	c.Cache.Redis.Password = mask(c.Cache.Redis.Password)
	return c
}
