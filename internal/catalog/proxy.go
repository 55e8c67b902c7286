// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ManuGH/dramarelay/internal/ratelimit"
	"github.com/ManuGH/dramarelay/internal/resilience"
)

// ProxyHandler is the same-origin JSON pass-through towards the providers:
// GET <prefix>/<path>?platform=<name>&...
type ProxyHandler struct {
	client          *Client
	prefix          string
	defaultPlatform string
}

// NewProxyHandler serves pass-through requests below prefix. Requests without
// a platform parameter go to defaultPlatform.
func NewProxyHandler(client *Client, prefix, defaultPlatform string) *ProxyHandler {
	if defaultPlatform == "" {
		defaultPlatform = PlatformDramaBox
	}
	return &ProxyHandler{
		client:          client,
		prefix:          strings.TrimRight(prefix, "/"),
		defaultPlatform: defaultPlatform,
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	platform := query.Get("platform")
	if platform == "" {
		platform = h.defaultPlatform
	}
	query.Del("platform")

	path := strings.TrimPrefix(r.URL.EscapedPath(), h.prefix)
	if path == "" {
		path = "/"
	}

	res, err := h.client.Get(r.Context(), platform, path, query)
	if err != nil {
		status, msg := statusForError(err)
		writeJSONError(w, status, msg)
		return
	}

	p, _ := h.client.Provider(platform)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if p.CacheControl != "" {
		w.Header().Set("Cache-Control", p.CacheControl)
	}
	w.Header().Set("X-Cache", strings.ToUpper(res.Cache))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

// statusForError maps catalog errors onto the client-facing status and message.
func statusForError(err error) (int, string) {
	var se *StatusError
	switch {
	case errors.Is(err, ErrForbiddenPath):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, ErrEpisodeLocked):
		return http.StatusForbidden, "Episode locked"
	case errors.Is(err, ErrUnknownPlatform):
		return http.StatusNotFound, "Unknown platform"
	case errors.Is(err, ErrInvalidEpisode):
		return http.StatusBadRequest, "Invalid episode"
	case errors.Is(err, ErrPlaybackUnavailable):
		return http.StatusNotFound, "Playback unavailable"
	case errors.Is(err, ErrDramaNotFound):
		return http.StatusNotFound, "Drama not found"
	case errors.Is(err, ErrEmptyQuery):
		return http.StatusBadRequest, "Missing search query"
	case errors.As(err, &se):
		return se.Status, "API request failed"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "Upstream unavailable"
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	default:
		return http.StatusInternalServerError, "API request failed"
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
