// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRelayRequest(t *testing.T) {
	before := testutil.ToFloat64(relayRequests.WithLabelValues(KindManifest, ResultOK))
	RecordRelayRequest(KindManifest, ResultOK)
	RecordRelayRequest(KindManifest, ResultOK)
	after := testutil.ToFloat64(relayRequests.WithLabelValues(KindManifest, ResultOK))
	assert.Equal(t, before+2, after)
}

func TestAddRelayStreamedBytes_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(relayStreamedBytes)
	AddRelayStreamedBytes(0)
	AddRelayStreamedBytes(-5)
	AddRelayStreamedBytes(188)
	assert.Equal(t, before+188, testutil.ToFloat64(relayStreamedBytes))
}

func TestObserveRelayUpstream(t *testing.T) {
	ObserveRelayUpstream(KindSegment, 120*time.Millisecond)

	metric := &dto.Metric{}
	obs, err := relayUpstreamLatency.GetMetricWithLabelValues(KindSegment)
	require.NoError(t, err)
	require.NoError(t, obs.(interface{ Write(*dto.Metric) error }).Write(metric))
	assert.GreaterOrEqual(t, metric.GetHistogram().GetSampleCount(), uint64(1))
}

func TestSetCircuitBreakerState_OneHot(t *testing.T) {
	SetCircuitBreakerState("dramabox", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("dramabox", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("dramabox", "closed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("dramabox", "half-open")))
}
