package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the audit pipeline collectors
type Metrics struct {
	// Audits by outcome: completed, empty, quota_exceeded, failed
	AuditsTotal *prometheus.CounterVec

	AuditDuration prometheus.Histogram

	ViolationsTotal *prometheus.CounterVec

	// Translator output parse results: parsed, defaulted
	ParseOutcomes *prometheus.CounterVec

	// Queries absorbed by the executor: rejected, failed
	QueryErrors *prometheus.CounterVec

	ClassifierErrors prometheus.Counter

	// 0=closed, 1=half-open, 2=open
	CircuitBreakerState *prometheus.GaugeVec
}

// New registers collectors on reg. A nil registerer gets a private registry,
// so tests and CLI commands can build a pipeline without touching the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		AuditsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_audits_total",
			Help: "Total number of processed audits by outcome.",
		}, []string{"outcome"}),

		AuditDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_audit_duration_seconds",
			Help:    "Histogram of audit latencies, translator call included.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),

		ViolationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_violations_total",
			Help: "Total number of reported violations by risk label.",
		}, []string{"risk_label"}),

		ParseOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_translator_parse_total",
			Help: "Translator responses by parse outcome.",
		}, []string{"outcome"}),

		QueryErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_query_errors_total",
			Help: "Generated queries that were rejected or failed and degraded to an empty result.",
		}, []string{"type"}),

		ClassifierErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "compliance_classifier_errors_total",
			Help: "Scoring failures that degraded rows to manual review.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "compliance_translator_circuit_breaker_state",
			Help: "Current state of the translator circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"provider"}),
	}
}
