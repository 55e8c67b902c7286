// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dramarelay"

// Relay request kinds.
const (
	KindManifest = "manifest"
	KindSegment  = "segment"
)

// Relay outcomes.
const (
	ResultOK        = "ok"
	ResultMissing   = "missing_target"
	ResultForbidden = "forbidden"
	ResultUpstream  = "upstream_error"
	ResultCanceled  = "client_canceled"
)

var (
	relayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_requests_total",
		Help:      "Relay requests by kind and result",
	}, []string{"kind", "result"})

	relayUpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "relay_upstream_headers_seconds",
		Help:      "Time from upstream request start to response headers",
		Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	}, []string{"kind"})

	relayStreamedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_streamed_bytes_total",
		Help:      "Bytes copied from upstream segment bodies to clients",
	})

	relayRewrittenLines = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_rewritten_lines_total",
		Help:      "Manifest reference lines rewritten to relay URLs",
	})

	relayInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relay_in_flight",
		Help:      "Relay requests currently being served (including open segment streams)",
	})
)

// RecordRelayRequest counts one finished relay request.
func RecordRelayRequest(kind, result string) {
	relayRequests.WithLabelValues(kind, result).Inc()
}

// ObserveRelayUpstream records the time-to-headers of an upstream fetch.
func ObserveRelayUpstream(kind string, d time.Duration) {
	relayUpstreamLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// AddRelayStreamedBytes adds copied segment bytes.
func AddRelayStreamedBytes(n int64) {
	if n > 0 {
		relayStreamedBytes.Add(float64(n))
	}
}

// AddRelayRewrittenLines adds rewritten manifest lines.
func AddRelayRewrittenLines(n int) {
	if n > 0 {
		relayRewrittenLines.Add(float64(n))
	}
}

// IncRelayInFlight / DecRelayInFlight track open relay requests.
func IncRelayInFlight() { relayInFlight.Inc() }
func DecRelayInFlight() { relayInFlight.Dec() }
