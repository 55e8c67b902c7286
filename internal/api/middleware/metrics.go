// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dramarelay_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds, segment streaming included",
		Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 15, 60},
	}, []string{"method", "route", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dramarelay_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	// Segments reach a few MB, MP4 episodes a few hundred.
	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dramarelay_http_response_size_bytes",
		Help:    "HTTP response body sizes in bytes",
		Buckets: prometheus.ExponentialBuckets(256, 8, 8),
	}, []string{"method", "route", "status"})
)

// Metrics records request metrics labelled by chi route pattern. Requests that
// match no route share the "unmatched" label.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			labels := []string{r.Method, routeLabel(r), strconv.Itoa(code)}
			httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			if n := ww.BytesWritten(); n > 0 {
				httpResponseSize.WithLabelValues(labels...).Observe(float64(n))
			}
		})
	}
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
