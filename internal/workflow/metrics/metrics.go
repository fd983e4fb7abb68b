package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks automation runs and per-rule outcomes.
type Metrics struct {
	Runs         *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	RuleMatched  *prometheus.CounterVec
	RuleUpdated  *prometheus.CounterVec
	RuleFailures *prometheus.CounterVec
}

// New registers workflow metrics with the default registry. Call once per process.
func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_automation_runs_total",
			Help: "Automation runs by mode (dry_run, apply) and outcome (ok, error, locked)",
		}, []string{"mode", "outcome"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caseflow_automation_run_duration_seconds",
			Help:    "Duration of a full automation run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"mode"}),
		RuleMatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_automation_rule_matched_total",
			Help: "Cases matched by a rule's predicate",
		}, []string{"rule_key"}),
		RuleUpdated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_automation_rule_updated_total",
			Help: "Cases transitioned by a rule in apply mode",
		}, []string{"rule_key"}),
		RuleFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_automation_rule_failures_total",
			Help: "Rule evaluations that failed and were isolated from the run",
		}, []string{"rule_key"}),
	}
}

func mode(dryRun bool) string {
	if dryRun {
		return "dry_run"
	}
	return "apply"
}

// ObserveRun records a finished run. Call with time.Now() taken at the start.
func (m *Metrics) ObserveRun(dryRun bool, outcome string, start time.Time) {
	m.Runs.WithLabelValues(mode(dryRun), outcome).Inc()
	m.RunDuration.WithLabelValues(mode(dryRun)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddRuleCounts(ruleKey string, matched, updated int) {
	m.RuleMatched.WithLabelValues(ruleKey).Add(float64(matched))
	m.RuleUpdated.WithLabelValues(ruleKey).Add(float64(updated))
}

func (m *Metrics) IncrementRuleFailure(ruleKey string) {
	m.RuleFailures.WithLabelValues(ruleKey).Inc()
}
