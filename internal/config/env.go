// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every canonical environment key.
const EnvPrefix = "DRAMARELAY_"

// envBinding maps one canonical environment key, plus optional legacy
// aliases, onto a config field.
type envBinding struct {
	key     string
	aliases []string
	apply   func(cfg *AppConfig, value string) error
}

func envBindings() []envBinding {
	return []envBinding{
		// PORT comes first so DRAMARELAY_LISTEN can override it.
		{key: "PORT", apply: func(c *AppConfig, v string) error {
			if _, err := strconv.Atoi(v); err != nil {
				return err
			}
			c.Server.Listen = ":" + v
			return nil
		}},
		{key: EnvPrefix + "LISTEN", apply: setString(func(c *AppConfig) *string { return &c.Server.Listen })},
		{key: EnvPrefix + "STATIC_DIR", apply: setString(func(c *AppConfig) *string { return &c.Server.StaticDir })},
		{key: EnvPrefix + "CORS_ORIGINS", apply: setCSV(func(c *AppConfig) *[]string { return &c.Server.CORSOrigins })},
		{key: EnvPrefix + "SECURITY_HEADERS", apply: setBool(func(c *AppConfig) *bool { return &c.Server.SecurityHeaders })},
		{key: EnvPrefix + "SHUTDOWN_TIMEOUT", apply: setDuration(func(c *AppConfig) *time.Duration { return &c.Server.ShutdownTimeout })},
		{key: EnvPrefix + "RATE_LIMIT", apply: setInt(func(c *AppConfig) *int { return &c.Server.RateLimit.RequestsPerMinute })},
		{key: EnvPrefix + "RATE_LIMIT_WHITELIST", apply: setCSV(func(c *AppConfig) *[]string { return &c.Server.RateLimit.Whitelist })},

		{key: EnvPrefix + "RELAY_PATH", apply: setString(func(c *AppConfig) *string { return &c.Relay.Path })},
		{key: EnvPrefix + "UPSTREAM_BASE_URL", apply: setString(func(c *AppConfig) *string { return &c.Relay.UpstreamBaseURL })},
		{key: EnvPrefix + "RELAY_TIMEOUT", apply: setDuration(func(c *AppConfig) *time.Duration { return &c.Relay.RequestTimeout })},
		{key: EnvPrefix + "RELAY_USER_AGENT", apply: setString(func(c *AppConfig) *string { return &c.Relay.UserAgent })},
		{key: EnvPrefix + "ALLOWED_HOSTS", apply: setCSV(func(c *AppConfig) *[]string { return &c.Relay.AllowedHosts })},
		{key: EnvPrefix + "MAX_MANIFEST_BYTES", apply: func(c *AppConfig, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			c.Relay.MaxManifestBytes = n
			return nil
		}},

		{key: EnvPrefix + "DRAMABOX_URL", aliases: []string{"API_URL"}, apply: setString(func(c *AppConfig) *string { return &c.Catalog.DramaBox.BaseURL })},
		{key: EnvPrefix + "DRAMABOX_TOKEN", aliases: []string{"AUTH_TOKEN"}, apply: setString(func(c *AppConfig) *string { return &c.Catalog.DramaBox.Token })},
		{key: EnvPrefix + "SHORTMAX_URL", aliases: []string{"SM_API_URL"}, apply: setString(func(c *AppConfig) *string { return &c.Catalog.ShortMax.BaseURL })},
		{key: EnvPrefix + "SHORTMAX_TOKEN", aliases: []string{"SM_AUTH_TOKEN"}, apply: setString(func(c *AppConfig) *string { return &c.Catalog.ShortMax.Token })},
		{key: EnvPrefix + "DEFAULT_PLATFORM", apply: setString(func(c *AppConfig) *string { return &c.Catalog.DefaultPlatform })},
		{key: EnvPrefix + "CATALOG_TIMEOUT", apply: setDuration(func(c *AppConfig) *time.Duration { return &c.Catalog.RequestTimeout })},
		{key: EnvPrefix + "CACHE_TTL", apply: setDuration(func(c *AppConfig) *time.Duration { return &c.Catalog.CacheTTL })},
		{key: EnvPrefix + "UPSTREAM_RATE", apply: func(c *AppConfig, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			c.Catalog.RateLimit.Rate = f
			return nil
		}},
		{key: EnvPrefix + "UPSTREAM_BURST", apply: setInt(func(c *AppConfig) *int { return &c.Catalog.RateLimit.Burst })},
		{key: EnvPrefix + "BREAKER_THRESHOLD", apply: setInt(func(c *AppConfig) *int { return &c.Catalog.Breaker.Threshold })},
		{key: EnvPrefix + "BREAKER_RESET", apply: setDuration(func(c *AppConfig) *time.Duration { return &c.Catalog.Breaker.ResetTimeout })},

		{key: EnvPrefix + "CACHE_BACKEND", apply: setString(func(c *AppConfig) *string { return &c.Cache.Backend })},
		{key: EnvPrefix + "REDIS_ADDR", apply: setString(func(c *AppConfig) *string { return &c.Cache.Redis.Addr })},
		{key: EnvPrefix + "REDIS_PASSWORD", apply: setString(func(c *AppConfig) *string { return &c.Cache.Redis.Password })},
		{key: EnvPrefix + "REDIS_DB", apply: setInt(func(c *AppConfig) *int { return &c.Cache.Redis.DB })},

		{key: EnvPrefix + "LOG_LEVEL", aliases: []string{"LOG_LEVEL"}, apply: setString(func(c *AppConfig) *string { return &c.Log.Level })},
		{key: EnvPrefix + "LOG_FORMAT", apply: setString(func(c *AppConfig) *string { return &c.Log.Format })},

		{key: EnvPrefix + "TRACING_ENABLED", apply: setBool(func(c *AppConfig) *bool { return &c.Telemetry.Enabled })},
		{key: EnvPrefix + "OTLP_EXPORTER", apply: setString(func(c *AppConfig) *string { return &c.Telemetry.Exporter })},
		{key: EnvPrefix + "OTLP_ENDPOINT", aliases: []string{"OTEL_EXPORTER_OTLP_ENDPOINT"}, apply: setString(func(c *AppConfig) *string { return &c.Telemetry.Endpoint })},
		{key: EnvPrefix + "TRACING_SAMPLE_RATE", apply: func(c *AppConfig, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			c.Telemetry.SamplingRate = f
			return nil
		}},
	}
}

// mergeEnv applies environment overrides. A canonical key wins over its
// aliases; both set to different values is an error.
func (l *Loader) mergeEnv(cfg *AppConfig) error {
	for _, b := range envBindings() {
		key, value, ok, err := l.resolve(b)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := b.apply(cfg, value); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidEnv, key, value, err)
		}
		l.logSource(key, value)
	}
	return nil
}

func (l *Loader) resolve(b envBinding) (key, value string, ok bool, err error) {
	if v, set := l.lookupEnv(b.key); set && v != "" {
		key, value, ok = b.key, v, true
	}
	for _, alias := range b.aliases {
		v, set := l.lookupEnv(alias)
		if !set || v == "" {
			continue
		}
		if ok && v != value {
			return "", "", false, fmt.Errorf("%w: %s and %s differ", ErrAliasConflict, key, alias)
		}
		if !ok {
			key, value, ok = alias, v, true
		}
	}
	return key, value, ok, nil
}

func (l *Loader) logSource(key, value string) {
	evt := l.logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		evt = evt.Bool("sensitive", true)
	} else {
		evt = evt.Str("value", value)
	}
	evt.Msg("using environment variable")
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "token") || strings.Contains(lower, "password")
}

func setString(field func(*AppConfig) *string) func(*AppConfig, string) error {
	return func(c *AppConfig, v string) error {
		*field(c) = v
		return nil
	}
}

func setInt(field func(*AppConfig) *int) func(*AppConfig, string) error {
	return func(c *AppConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setBool(field func(*AppConfig) *bool) func(*AppConfig, string) error {
	return func(c *AppConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func setDuration(field func(*AppConfig) *time.Duration) func(*AppConfig, string) error {
	return func(c *AppConfig, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func setCSV(field func(*AppConfig) *[]string) func(*AppConfig, string) error {
	return func(c *AppConfig, v string) error {
		*field(c) = splitCSV(v)
		return nil
	}
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
