// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_requests_total",
		Help:      "Catalog proxy requests by platform, cache outcome and result",
	}, []string{"platform", "cache", "result"})

	catalogUpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "catalog_upstream_duration_seconds",
		Help:      "Catalog upstream request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"platform"})

	ratelimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbound_ratelimit_waits_total",
		Help:      "Outbound requests delayed or rejected by the per-upstream rate limiter",
	}, []string{"upstream", "outcome"})
)

// RecordCatalogRequest counts one catalog proxy request.
func RecordCatalogRequest(platform, cache, result string) {
	catalogRequests.WithLabelValues(platform, cache, result).Inc()
}

// ObserveCatalogUpstream records catalog upstream latency.
func ObserveCatalogUpstream(platform string, d time.Duration) {
	catalogUpstreamLatency.WithLabelValues(platform).Observe(d.Seconds())
}

// RecordRateLimitWait counts an outbound rate limiter decision that was not immediate.
func RecordRateLimitWait(upstream, outcome string) {
	ratelimitWaits.WithLabelValues(upstream, outcome).Inc()
}
