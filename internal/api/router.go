// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api assembles the public HTTP surface: relay, catalog, probes,
// metrics and the optional UI bundle.
package api

import (
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/dramarelay/internal/api/middleware"
	"github.com/ManuGH/dramarelay/internal/health"
	drlog "github.com/ManuGH/dramarelay/internal/log"
	"github.com/ManuGH/dramarelay/internal/relay"
)

// APIPrefix is where the JSON pass-through proxy is mounted.
const APIPrefix = "/api"

// Deps are the collaborators the router mounts.
type Deps struct {
	Relay   *relay.Relay
	Proxy   http.Handler // JSON pass-through, served below APIPrefix
	Catalog http.Handler // normalised catalog routes, mounted at /catalog
	Health  *health.Manager

	StaticDir string
	Stack     middleware.StackConfig
	Logger    zerolog.Logger
}

// NewRouter returns the root handler.
func NewRouter(d Deps) (http.Handler, error) {
	if d.Relay == nil {
		return nil, errors.New("api: relay is required")
	}
	if d.Health == nil {
		return nil, errors.New("api: health manager is required")
	}
	logger := d.Logger.With().Str(drlog.FieldComponent, "api").Logger()

	// Media players on any origin must reach the relay and the pass-through.
	stack := d.Stack
	stack.PublicPaths = append(slices.Clone(stack.PublicPaths), d.Relay.Config().RelayPath, APIPrefix)
	r := middleware.NewRouter(stack)

	r.Get("/healthz", d.Health.ServeHealth)
	r.Get("/readyz", d.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", serveOpenAPI)

	r.Handle(d.Relay.Config().RelayPath, d.Relay)

	if d.Proxy != nil {
		r.Handle(APIPrefix+"/*", d.Proxy)
	}
	if d.Catalog != nil {
		r.Mount("/catalog", d.Catalog)
	}

	if d.StaticDir != "" {
		r.Get("/*", newStaticHandler(d.StaticDir, logger).ServeHTTP)
	} else {
		r.NotFound(notFound)
	}

	logRoutes(r, logger)
	return r, nil
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":"Not found"}`))
}

func logRoutes(r chi.Routes, logger zerolog.Logger) {
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		logger.Debug().Str("method", method).Str("route", route).Msg("route registered")
		return nil
	})
}
