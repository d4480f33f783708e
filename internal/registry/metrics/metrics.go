// Package metrics provides Prometheus metrics for registry lookups and the
// chain node calls behind them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups registry metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Node calls
	CallsTotal          *prometheus.CounterVec   // eth_call results by chain, method, outcome
	CallDurationSeconds *prometheus.HistogramVec // eth_call latency by chain, method
	BatchSize           prometheus.Histogram     // calls per JSON-RPC batch

	// Node health
	CircuitTransitionsTotal *prometheus.CounterVec // breaker transitions by chain, state

	// Client operations
	LookupsTotal *prometheus.CounterVec // lookups by operation, result
}

// New registers registry metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tckt_registry_node_calls_total",
			Help: "Total eth_call requests to chain nodes by chain, method and outcome",
		}, []string{"chain", "method", "outcome"}),

		CallDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tckt_registry_node_call_duration_seconds",
			Help:    "Latency of eth_call requests to chain nodes",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"chain", "method"}),

		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tckt_registry_node_batch_size",
			Help:    "Number of calls per JSON-RPC batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),

		CircuitTransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tckt_registry_circuit_transitions_total",
			Help: "Circuit breaker transitions per chain node",
		}, []string{"chain", "state"}),

		LookupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tckt_registry_lookups_total",
			Help: "Registry client lookups by operation and result",
		}, []string{"operation", "result"}),
	}
}

// ObserveCall records one node call.
func (m *Metrics) ObserveCall(chain, method, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(chain, method, outcome).Inc()
	m.CallDurationSeconds.WithLabelValues(chain, method).Observe(durationSeconds)
}

// ObserveBatch records the size of a JSON-RPC batch.
func (m *Metrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
}

// RecordCircuitTransition records a breaker opening or closing.
func (m *Metrics) RecordCircuitTransition(chain, state string) {
	if m == nil {
		return
	}
	m.CircuitTransitionsTotal.WithLabelValues(chain, state).Inc()
}

// RecordLookup records a client operation result ("found", "not_found", "error").
func (m *Metrics) RecordLookup(operation, result string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(operation, result).Inc()
}
