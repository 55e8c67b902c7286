// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/trace"

	drlog "github.com/ManuGH/dramarelay/internal/log"
	"github.com/ManuGH/dramarelay/internal/metrics"
	platformnet "github.com/ManuGH/dramarelay/internal/platform/net"
	"github.com/ManuGH/dramarelay/internal/telemetry"
)

const copyBufferSize = 32 << 10

var copyBuffers = sync.Pool{
	New: func() any {
		b := make([]byte, copyBufferSize)
		return &b
	},
}

// ServeHTTP handles GET and OPTIONS requests on the relay path.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	switch req.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet, http.MethodHead:
	default:
		w.Header().Set("Allow", "GET, OPTIONS")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	metrics.IncRelayInFlight()
	defer metrics.DecRelayInFlight()

	ctx := req.Context()
	logger := drlog.WithContext(ctx, r.logger)
	target := req.URL.Query().Get("url")

	kind := metrics.KindSegment
	if IsManifestTarget(target) {
		kind = metrics.KindManifest
	}

	resp, err := r.Fetch(ctx, target, WithRange(req.Header.Get("Range")))
	if err != nil {
		r.writeError(ctx, w, kind, target, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	trace.SpanFromContext(ctx).SetAttributes(
		telemetry.RelayAttributes(resp.Kind, platformnet.SanitizeURL(target), resp.Rewritten)...)

	for name, values := range resp.Header {
		w.Header()[name] = values
	}
	w.WriteHeader(resp.Status)

	if req.Method == http.MethodHead {
		metrics.RecordRelayRequest(resp.Kind, metrics.ResultOK)
		return
	}

	n, copyErr := copyFlush(w, resp.Body)
	if resp.Kind == metrics.KindSegment {
		metrics.AddRelayStreamedBytes(n)
	} else {
		metrics.AddRelayRewrittenLines(resp.Rewritten)
	}

	if copyErr != nil {
		result := metrics.ResultUpstream
		if ctx.Err() != nil {
			result = metrics.ResultCanceled
		}
		metrics.RecordRelayRequest(resp.Kind, result)
		logger.Debug().
			Err(copyErr).
			Str(drlog.FieldEvent, "relay.stream_aborted").
			Str(drlog.FieldKind, resp.Kind).
			Str(drlog.FieldTarget, platformnet.SanitizeURL(target)).
			Int64(drlog.FieldBytes, n).
			Msg("relay stream ended early")
		return
	}

	metrics.RecordRelayRequest(resp.Kind, metrics.ResultOK)
	logger.Debug().
		Str(drlog.FieldEvent, "relay.served").
		Str(drlog.FieldKind, resp.Kind).
		Str(drlog.FieldTarget, platformnet.SanitizeURL(target)).
		Int(drlog.FieldStatus, resp.Status).
		Int64(drlog.FieldBytes, n).
		Int(drlog.FieldRewritten, resp.Rewritten).
		Msg("relay served")
}

func (r *Relay) writeError(ctx context.Context, w http.ResponseWriter, kind, target string, err error) {
	logger := drlog.WithContext(ctx, r.logger)

	switch {
	case errors.Is(err, ErrMissingTarget):
		metrics.RecordRelayRequest(kind, metrics.ResultMissing)
		http.Error(w, "Missing url", http.StatusBadRequest)
	case errors.Is(err, ErrForbiddenTarget):
		metrics.RecordRelayRequest(kind, metrics.ResultForbidden)
		trace.SpanFromContext(ctx).SetAttributes(telemetry.ErrorAttributes("forbidden_target")...)
		logger.Warn().
			Err(err).
			Str(drlog.FieldEvent, "relay.forbidden").
			Str(drlog.FieldTarget, platformnet.SanitizeURL(target)).
			Msg("relay target rejected by host policy")
		http.Error(w, "Forbidden", http.StatusForbidden)
	case ctx.Err() != nil:
		// Client is gone; nobody reads the response.
		metrics.RecordRelayRequest(kind, metrics.ResultCanceled)
		logger.Debug().
			Err(err).
			Str(drlog.FieldEvent, "relay.client_canceled").
			Str(drlog.FieldTarget, platformnet.SanitizeURL(target)).
			Msg("client canceled relay request")
	default:
		metrics.RecordRelayRequest(kind, metrics.ResultUpstream)
		trace.SpanFromContext(ctx).SetAttributes(telemetry.ErrorAttributes("relay_upstream")...)
		event := logger.Warn().
			Err(err).
			Str(drlog.FieldEvent, "relay.upstream_failed").
			Str(drlog.FieldKind, kind).
			Str(drlog.FieldTarget, platformnet.SanitizeURL(target))
		var upErr *UpstreamError
		if errors.As(err, &upErr) && upErr.Status != 0 {
			event = event.Int(drlog.FieldStatus, upErr.Status)
		}
		event.Msg("relay upstream fetch failed")
		http.Error(w, "Video proxy error", http.StatusInternalServerError)
	}
}

// copyFlush copies src to w and flushes after every chunk so the player sees
// bytes as soon as the upstream delivers them.
func copyFlush(w http.ResponseWriter, src io.Reader) (int64, error) {
	bufp := copyBuffers.Get().(*[]byte)
	defer copyBuffers.Put(bufp)
	buf := *bufp

	rc := http.NewResponseController(w)
	var written int64
	for {
		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := w.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return written, err
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
