// SPDX-License-Identifier: MIT

package middleware

import (
	"github.com/go-chi/chi/v5"

	drlog "github.com/ManuGH/dramarelay/internal/log"
)

// StackConfig configures the HTTP ingress middleware stack.
type StackConfig struct {
	AllowedOrigins []string
	PublicPaths    []string // always answered with Access-Control-Allow-Origin: *

	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	RateLimitRequests  int // per client per minute, 0 disables
	RateLimitWhitelist []string
}

// NewRouter constructs a chi router with the middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r, outermost first.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(CORS(cfg.AllowedOrigins, cfg.PublicPaths...))
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(drlog.Middleware())
	}
	if cfg.RateLimitRequests > 0 {
		r.Use(RateLimit(RateLimitConfig{
			RequestLimit: cfg.RateLimitRequests,
			Whitelist:    cfg.RateLimitWhitelist,
		}))
	}
}
