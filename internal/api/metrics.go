// SPDX-License-Identifier: MIT

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var uiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dramarelay_ui_requests_total",
	Help: "Static UI requests by outcome (served, not_modified, not_found, denied, error)",
}, []string{"result"})

func recordUIRequest(result string) {
	uiRequestsTotal.WithLabelValues(result).Inc()
}
