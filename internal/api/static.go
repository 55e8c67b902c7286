// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	drlog "github.com/ManuGH/dramarelay/internal/log"
)

// staticHandler serves a pre-built single page UI. Unknown extensionless
// paths fall back to index.html so client-side routes survive a reload.
type staticHandler struct {
	root   string
	logger zerolog.Logger
}

func newStaticHandler(dir string, logger zerolog.Logger) *staticHandler {
	return &staticHandler{root: dir, logger: logger}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := drlog.WithContext(r.Context(), h.logger)

	if isPathTraversal(r.URL.Path) {
		logger.Warn().Str(drlog.FieldEvent, "ui.denied").Str(drlog.FieldPath, r.URL.Path).Str("reason", "path_escape").Msg("detected traversal sequence")
		recordUIRequest("denied")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	root, err := filepath.Abs(h.root)
	if err == nil {
		root, err = filepath.EvalSymlinks(root)
	}
	if err != nil {
		logger.Error().Err(err).Str(drlog.FieldEvent, "ui.internal_error").Msg("could not resolve ui directory")
		recordUIRequest("error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	name := filepath.Join(root, filepath.FromSlash(clean))
	if clean == "/" {
		name = filepath.Join(root, "index.html")
	}

	realPath, ok := h.resolve(root, name)
	if !ok {
		if path.Ext(clean) != "" {
			recordUIRequest("not_found")
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		realPath, ok = h.resolve(root, filepath.Join(root, "index.html"))
		if !ok {
			recordUIRequest("not_found")
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
	}

	// #nosec G304 -- realPath is validated to reside inside the ui directory
	f, err := os.Open(realPath)
	if err != nil {
		logger.Error().Err(err).Str(drlog.FieldEvent, "ui.internal_error").Str(drlog.FieldPath, clean).Msg("could not open ui file")
		recordUIRequest("error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		recordUIRequest("error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
	w.Header().Set("ETag", etag)
	if filepath.Base(realPath) == "index.html" {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		recordUIRequest("not_modified")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	recordUIRequest("served")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// resolve follows symlinks and reports whether name is a regular file inside root.
func (h *staticHandler) resolve(root, name string) (string, bool) {
	realPath, err := filepath.EvalSymlinks(name)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", false
	}
	info, err := os.Stat(realPath)
	if err != nil || info.IsDir() {
		return "", false
	}
	return realPath, true
}

// isPathTraversal decodes p several times to catch double encoding, applies
// Unicode normalization and looks for dot-dot or NUL sequences.
func isPathTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		}
		if decoded == prev {
			break
		}
	}

	for _, s := range []string{strings.ToLower(p), strings.ToLower(decoded)} {
		for _, pat := range []string{"..", "%00", "\x00", "%c0%ae", "%e0%80%ae"} {
			if strings.Contains(s, pat) {
				return true
			}
		}
	}
	return strings.Contains(norm.NFC.String(decoded), "..")
}
