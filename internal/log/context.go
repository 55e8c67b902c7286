// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log wraps zerolog with the process-wide logger, request-scoped
// correlation fields and the access log middleware.
package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

// ContextWithRequestID stores id for WithContext and the access log.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID, or "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithContext adds the request ID and the active span's trace and span IDs
// to l. l is returned untouched when ctx carries neither.
func WithContext(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return l
	}
	rid := RequestIDFromContext(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if rid == "" && !sc.IsValid() {
		return l
	}

	c := l.With()
	if rid != "" {
		c = c.Str(FieldRequestID, rid)
	}
	if sc.IsValid() {
		c = c.Str(FieldTraceID, sc.TraceID().String()).Str(FieldSpanID, sc.SpanID().String())
	}
	return c.Logger()
}

// WithComponentFromContext is WithContext applied to WithComponent(component).
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
