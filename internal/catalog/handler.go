// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	drlog "github.com/ManuGH/dramarelay/internal/log"
)

// Handler serves the normalised catalog routes:
//
//	GET /{platform}/dramas?page=&lang=
//	GET /{platform}/search?q=&page=&lang=
//	GET /{platform}/rank?lang=
//	GET /{platform}/dramas/{id}?lang=
//	GET /{platform}/dramas/{id}/episodes/{episode}?lang=
type Handler struct {
	catalog *Catalog
	logger  zerolog.Logger
}

// NewHandler creates the catalog route handler.
func NewHandler(c *Catalog, logger zerolog.Logger) *Handler {
	return &Handler{catalog: c, logger: logger.With().Str(drlog.FieldComponent, "catalog").Logger()}
}

// Routes returns a router to be mounted below /catalog.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handlePlatforms)
	r.Get("/{platform}/dramas", h.handleList)
	r.Get("/{platform}/search", h.handleSearch)
	r.Get("/{platform}/rank", h.handleRank)
	r.Get("/{platform}/dramas/{id}", h.handleDetail)
	r.Get("/{platform}/dramas/{id}/episodes/{episode}", h.handlePlayback)
	return r
}

func (h *Handler) handlePlatforms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"platforms": h.catalog.Platforms()})
}

// pageParam reads ?page=, defaulting to 1.
func pageParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	adapter, err := h.catalog.Adapter(chi.URLParam(r, "platform"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, ok := pageParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Invalid page")
		return
	}

	out, err := adapter.ListDramas(r.Context(), page, r.URL.Query().Get("lang"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	adapter, err := h.catalog.Adapter(chi.URLParam(r, "platform"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, ok := pageParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Invalid page")
		return
	}

	q := r.URL.Query()
	out, err := adapter.Search(r.Context(), q.Get("q"), page, q.Get("lang"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRank(w http.ResponseWriter, r *http.Request) {
	adapter, err := h.catalog.Adapter(chi.URLParam(r, "platform"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sections, err := adapter.Rank(r.Context(), r.URL.Query().Get("lang"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]RankSection{"sections": sections})
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	adapter, err := h.catalog.Adapter(chi.URLParam(r, "platform"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := adapter.Detail(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("lang"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handlePlayback(w http.ResponseWriter, r *http.Request) {
	adapter, err := h.catalog.Adapter(chi.URLParam(r, "platform"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	episode, err := strconv.Atoi(chi.URLParam(r, "episode"))
	if err != nil {
		h.fail(w, r, ErrInvalidEpisode)
		return
	}

	out, err := adapter.Playback(r.Context(), chi.URLParam(r, "id"), episode, r.URL.Query().Get("lang"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusForError(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, r.Context().Err()) {
		logger := drlog.WithContext(r.Context(), h.logger)
		logger.Warn().
			Err(err).
			Str(drlog.FieldEvent, "catalog.request_failed").
			Str(drlog.FieldPath, r.URL.Path).
			Msg("catalog request failed")
	}
	writeJSONError(w, status, msg)
}
