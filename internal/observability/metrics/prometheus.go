// Package metrics provides Prometheus metrics for the claim analysis engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	RowsAnalyzed          prometheus.Counter
	RowsDegraded          prometheus.Counter
	RunsCompleted         prometheus.Counter
	RunsFailed            prometheus.Counter
	AnalysisDuration      prometheus.Histogram
	VerdictsByRiskLevel   *prometheus.CounterVec
	OverridesFired        prometheus.Counter
	ReferenceCalls        *prometheus.CounterVec
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		RowsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_rows_total",
			Help: "Total claim rows analyzed",
		}),
		RowsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_rows_degraded_total",
			Help: "Total rows that degraded to a manual-review verdict",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_runs_completed_total",
			Help: "Total analysis runs completed",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_runs_failed_total",
			Help: "Total analysis runs failed",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analysis_row_duration_seconds",
			Help:    "Per-row analysis duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		VerdictsByRiskLevel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_verdicts_total",
			Help: "Verdicts produced, by risk level",
		}, []string{"risk_level"}),
		OverridesFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_contraindication_overrides_total",
			Help: "High-confidence contraindication overrides fired",
		}),
		ReferenceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reference_calls_total",
			Help: "Reference service calls, by service and outcome",
		}, []string{"service", "outcome"}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.RowsAnalyzed,
		m.RowsDegraded,
		m.RunsCompleted,
		m.RunsFailed,
		m.AnalysisDuration,
		m.VerdictsByRiskLevel,
		m.OverridesFired,
		m.ReferenceCalls,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveReferenceCall counts one reference service call by outcome.
// Registered as the usage tracker observer in the service mains.
func (m *Metrics) ObserveReferenceCall(service string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ReferenceCalls.WithLabelValues(service, outcome).Inc()
}

// SetBreakerState exports one breaker's state. Registered as the breaker
// manager's state hook in the service mains.
func (m *Metrics) SetBreakerState(name, state string) {
	m.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(state))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
