// Package metrics exposes Prometheus instrumentation for the margin API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marginlab"

// Outcome labels for calculation attempts.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	calculations *prometheus.CounterVec
	marginRate   prometheus.Histogram
	rateLimited  prometheus.Counter
	saved        prometheus.Counter
	purged       prometheus.Counter
}

// New creates a registry with process/Go collectors and the app metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		calculations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Margin calculations by outcome.",
		}, []string{"outcome"}),
		marginRate: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "margin_rate",
			Help:      "Distribution of computed margin rates.",
			Buckets:   []float64{-0.5, -0.1, 0, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75},
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the daily calculation cap.",
		}),
		saved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saved_calculations_total",
			Help:      "Calculations saved for later retrieval.",
		}),
		purged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_calculations_total",
			Help:      "Saved calculations removed by retention.",
		}),
	}
}

// ObserveCalculation records one calculation attempt.
func (m *Metrics) ObserveCalculation(outcome string, marginRate float64) {
	m.calculations.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.marginRate.Observe(marginRate)
	}
}

// RateLimited records a request rejected by the daily cap.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// Saved records a persisted calculation.
func (m *Metrics) Saved() {
	m.saved.Inc()
}

// Purged records calculations removed by retention.
func (m *Metrics) Purged(n int64) {
	m.purged.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
