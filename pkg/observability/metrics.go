package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "topograph"

// Transaction results reported by ObserveTx.
const (
	TxCommitted = "committed"
	TxAborted   = "aborted"
	TxConflict  = "conflict"
	TxTimeout   = "timeout"
	TxError     = "error"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	StoreTx          *prometheus.CounterVec
	Canonicalized    *prometheus.CounterVec
	HandleCollisions prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "mutations_total",
				Help:      "Total number of graph mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		MutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "mutation_duration_seconds",
				Help:      "Duration of graph mutations, transaction included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		StoreTx: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "store_tx_total",
				Help:      "Store transactions by result",
			},
			[]string{"result"},
		),
		Canonicalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "canonical_discarded_total",
				Help:      "Entries dropped or rewritten while canonicalizing diagrams",
			},
			[]string{"kind"},
		),
		HandleCollisions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "handle_collisions_total",
				Help:      "Handles shared by more than one edge after allocation",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Mutations, m.MutationDuration, m.StoreTx, m.Canonicalized, m.HandleCollisions)
	}
	return m
}

// ObserveMutation records one finished mutation.
func (m *Metrics) ObserveMutation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(operation, outcome).Inc()
	m.MutationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveTx records how a store transaction ended.
func (m *Metrics) ObserveTx(result string) {
	if m == nil {
		return
	}
	m.StoreTx.WithLabelValues(result).Inc()
}

// ObserveDiscarded adds n to the canonicalization counter for kind.
func (m *Metrics) ObserveDiscarded(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Canonicalized.WithLabelValues(kind).Add(float64(n))
}

// ObserveCollisions adds n handle collisions.
func (m *Metrics) ObserveCollisions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.HandleCollisions.Add(float64(n))
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
