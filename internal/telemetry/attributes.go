// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on relay and catalog spans.
const (
	RelayKindKey      = "relay.kind"
	RelayTargetKey    = "relay.target"
	RelayRewrittenKey = "relay.rewritten_lines"

	CatalogPlatformKey = "catalog.platform"
	CatalogCacheKey    = "catalog.cache"

	ErrorTypeKey = "error.type"
)

// RelayAttributes describes a relay request. target must already be sanitized.
func RelayAttributes(kind, target string, rewritten int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(RelayKindKey, kind),
		attribute.String(RelayTargetKey, target),
	}
	if rewritten > 0 {
		attrs = append(attrs, attribute.Int(RelayRewrittenKey, rewritten))
	}
	return attrs
}

// CatalogAttributes describes a catalog request.
func CatalogAttributes(platform, cacheOutcome string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CatalogPlatformKey, platform),
		attribute.String(CatalogCacheKey, cacheOutcome),
	}
}

// ErrorAttributes classifies a failed request on its span.
func ErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(ErrorTypeKey, errType)}
}
