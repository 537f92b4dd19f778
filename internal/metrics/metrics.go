// Package metrics holds the Prometheus collectors for assessments,
// classifications and collaborator health.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "glowpath"

// Metrics groups the engine's collectors.
type Metrics struct {
	Assessments     *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	RiskOverrides   prometheus.Counter
	UpstreamErrors  *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	CircuitState    *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Assessments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Completed assessments by risk level",
		}, []string{"risk_level"}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Mismatch classifications by label",
		}, []string{"classification"}),
		RiskOverrides: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_overrides_total",
			Help:      "Model risk levels replaced by the deterministic value",
		}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Collaborator failures by source",
		}, []string{"source"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of service operations",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation", "outcome"}),
		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_open",
			Help:      "1 when a collaborator's breaker is not closed",
		}, []string{"collaborator"}),
		gatherer: reg,
	}
}

// ObserveAssessment records a finished assessment.
func (m *Metrics) ObserveAssessment(risk, classification string, overrode bool) {
	m.Assessments.WithLabelValues(risk).Inc()
	m.Classifications.WithLabelValues(classification).Inc()
	if overrode {
		m.RiskOverrides.Inc()
	}
}

// UpstreamFailure counts a failure attributed to source.
func (m *Metrics) UpstreamFailure(source string) {
	m.UpstreamErrors.WithLabelValues(source).Inc()
}

// ObserveDuration records how long operation took.
func (m *Metrics) ObserveDuration(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Duration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// SetCircuit records whether a collaborator's breaker is open or half-open.
func (m *Metrics) SetCircuit(collaborator string, notClosed bool) {
	v := 0.0
	if notClosed {
		v = 1
	}
	m.CircuitState.WithLabelValues(collaborator).Set(v)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
