// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strings"
)

// DefaultCSP lets the UI load covers from provider CDNs and play media
// through MSE blobs; media bytes themselves come from the same origin.
const DefaultCSP = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; media-src 'self' blob: https:; connect-src 'self'; frame-ancestors 'none'"

// PlayerPermissions keeps autoplay and fullscreen for the embedded player and
// denies device access the UI never needs.
const PlayerPermissions = "autoplay=(self), fullscreen=(self), picture-in-picture=(self), camera=(), microphone=(), geolocation=()"

const hsts = "max-age=15552000; includeSubDomains"

// SecurityHeaders sets browser hardening headers on every response. HSTS is
// only sent when the request reached us over TLS, directly or via a proxy
// that sets X-Forwarded-Proto.
func SecurityHeaders(csp string) func(http.Handler) http.Handler {
	if csp == "" {
		csp = DefaultCSP
	}
	fixed := map[string]string{
		"Content-Security-Policy": csp,
		"Permissions-Policy":      PlayerPermissions,
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range fixed {
				h.Set(k, v)
			}
			if overTLS(r) {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func overTLS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}
