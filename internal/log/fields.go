// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Relay fields
	FieldTarget      = "target"
	FieldUpstream    = "upstream"
	FieldKind        = "kind"
	FieldStatus      = "status"
	FieldBytes       = "bytes"
	FieldRewritten   = "rewritten"
	FieldContentType = "content_type"

	// Catalog fields
	FieldPlatform = "platform"
	FieldPath     = "path"
	FieldCache    = "cache"
)
