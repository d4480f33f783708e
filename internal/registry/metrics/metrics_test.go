package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCall("0xa86a", "handleOf", "ok", 0.02)
	m.ObserveCall("0xa86a", "handleOf", "ok", 0.03)
	m.ObserveCall("0x1", "handleOf", "timeout", 10)
	m.RecordLookup("handle_of", "not_found")
	m.RecordCircuitTransition("0x1", "open")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CallsTotal.WithLabelValues("0xa86a", "handleOf", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsTotal.WithLabelValues("0x1", "handleOf", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("handle_of", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitTransitionsTotal.WithLabelValues("0x1", "open")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCall("0x1", "handleOf", "ok", 0.1)
		m.ObserveBatch(3)
		m.RecordLookup("handle_of", "found")
		m.RecordCircuitTransition("0x1", "closed")
	})
}
