package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks case creation and lifecycle transitions.
type Metrics struct {
	CasesCreated        *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	RejectedTransitions *prometheus.CounterVec
	TransitionDuration  prometheus.Histogram
}

// New registers the case metrics with the default registry. Call once per process.
func New() *Metrics {
	return &Metrics{
		CasesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_cases_created_total",
			Help: "Total number of cases created, by service type",
		}, []string{"service_type"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_case_transitions_total",
			Help: "Total number of committed case status transitions",
		}, []string{"from", "to"}),
		RejectedTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_case_transitions_rejected_total",
			Help: "Transitions refused because the edge is not legal, by requested target",
		}, []string{"to"}),
		TransitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseflow_case_transition_duration_seconds",
			Help:    "Duration of a single case transition unit of work",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementCreated(serviceType string) {
	m.CasesCreated.WithLabelValues(serviceType).Inc()
}

func (m *Metrics) IncrementTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncrementRejectedTransition(to string) {
	m.RejectedTransitions.WithLabelValues(to).Inc()
}

// ObserveTransition records a transition's duration. Call with time.Now()
// taken at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}
