// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/dramarelay/internal/cache"
	drlog "github.com/ManuGH/dramarelay/internal/log"
	"github.com/ManuGH/dramarelay/internal/metrics"
	"github.com/ManuGH/dramarelay/internal/ratelimit"
	"github.com/ManuGH/dramarelay/internal/resilience"
	"github.com/ManuGH/dramarelay/internal/telemetry"
)

const maxResponseBytes = 8 << 20

// Cache outcomes reported in metrics and the X-Cache header.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheShared = "shared"
)

// ClientConfig tunes the guarded upstream client.
type ClientConfig struct {
	CacheTTL         time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
}

// Result is a provider JSON response.
type Result struct {
	Body  []byte
	Cache string
}

// Client performs cached, rate limited and breaker-guarded GETs against the
// configured providers. It is shared by the pass-through proxy and the
// adapters.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	limiter *ratelimit.Limiter
	cfg     ClientConfig
	logger  zerolog.Logger

	providers atomic.Pointer[map[string]Provider]
	group     singleflight.Group

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewClient creates a Client. A nil store disables caching; a nil limiter
// disables outbound rate limiting.
func NewClient(httpClient *http.Client, store cache.Cache, limiter *ratelimit.Limiter, cfg ClientConfig, logger zerolog.Logger, providers ...Provider) *Client {
	if store == nil {
		store = cache.NoOpCache{}
	}
	c := &Client{
		http:     httpClient,
		cache:    store,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger.With().Str(drlog.FieldComponent, "catalog").Logger(),
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	c.SetProviders(providers...)
	return c
}

// SetProviders atomically replaces the provider set. Used on config reload to
// rotate credentials without restarting.
func (c *Client) SetProviders(providers ...Provider) {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name] = p
	}
	c.providers.Store(&m)
}

// Provider returns the provider registered under name.
func (c *Client) Provider(name string) (Provider, error) {
	if m := c.providers.Load(); m != nil {
		if p, ok := (*m)[name]; ok {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("%q: %w", name, ErrUnknownPlatform)
}

func (c *Client) breaker(name string) *resilience.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[name]
	if !ok {
		cb = resilience.NewCircuitBreaker(name, c.cfg.BreakerThreshold, c.cfg.BreakerReset,
			resilience.WithFailurePredicate(tripsBreaker))
		c.breakers[name] = cb
	}
	return cb
}

// CheckBreakers reports an error naming every provider whose breaker is open.
func (c *Client) CheckBreakers(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var open []string
	for name, cb := range c.breakers {
		if cb.State() == resilience.StateOpen {
			open = append(open, name)
		}
	}
	if len(open) == 0 {
		return nil
	}
	sort.Strings(open)
	return fmt.Errorf("circuit open: %s", strings.Join(open, ", "))
}

// Get fetches path with query from the named provider.
func (c *Client) Get(ctx context.Context, platform, path string, query url.Values) (*Result, error) {
	p, err := c.Provider(platform)
	if err != nil {
		return nil, err
	}
	// path is in escaped form; the allow-list is checked against what the
	// provider will see once it decodes it.
	decoded, err := url.PathUnescape(path)
	if err != nil || !p.Allows(decoded) {
		return nil, fmt.Errorf("%s %s: %w", platform, path, ErrForbiddenPath)
	}

	target := p.BaseURL + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	key := platform + " " + target

	span := trace.SpanFromContext(ctx)
	if body, ok := c.cache.Get(ctx, key); ok {
		span.SetAttributes(telemetry.CatalogAttributes(platform, CacheHit)...)
		metrics.RecordCatalogRequest(platform, CacheHit, "ok")
		return &Result{Body: body, Cache: CacheHit}, nil
	}

	// The flight outlives any single caller; the http client timeout bounds it.
	ch := c.group.DoChan(key, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		body, err := c.fetch(flightCtx, p, target)
		if err != nil {
			return nil, err
		}
		c.cache.Set(flightCtx, key, body, c.cfg.CacheTTL)
		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		outcome := CacheMiss
		if res.Shared {
			outcome = CacheShared
		}
		span.SetAttributes(telemetry.CatalogAttributes(platform, outcome)...)
		if res.Err != nil {
			metrics.RecordCatalogRequest(platform, outcome, "error")
			return nil, res.Err
		}
		metrics.RecordCatalogRequest(platform, outcome, "ok")
		return &Result{Body: res.Val.([]byte), Cache: outcome}, nil
	}
}

func (c *Client) fetch(ctx context.Context, p Provider, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, p.Name); err != nil {
		return nil, err
	}

	var body []byte
	err := c.breaker(p.Name).Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if p.Token != "" {
			req.Header.Set("Authorization", "Bearer "+p.Token)
		}
		if p.UserAgent != "" {
			req.Header.Set("User-Agent", p.UserAgent)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		metrics.ObserveCatalogUpstream(p.Name, time.Since(start))
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			return &StatusError{Platform: p.Name, Status: resp.StatusCode}
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if len(body) > maxResponseBytes {
			return fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str(drlog.FieldEvent, "catalog.upstream_failed").
			Str(drlog.FieldPlatform, p.Name).
			Msg("catalog upstream request failed")
		return nil, err
	}
	return body, nil
}
