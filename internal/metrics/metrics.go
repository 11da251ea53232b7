package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation outcomes used as the "outcome" label.
const (
	OutcomeFired     = "fired"
	OutcomeNotFired  = "not_fired"
	OutcomeDuplicate = "duplicate"
	OutcomeDormant   = "dormant"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metrics provides observability for rule evaluation and deadlines.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Evaluations       *prometheus.CounterVec
	EvaluateLatency   *prometheus.HistogramVec
	BatchLatency      prometheus.Histogram
	DeadlinesOverdue  prometheus.Counter
	DeadlinesComplete *prometheus.CounterVec
	Increments        prometheus.Counter
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "duecycle_rule_evaluations_total",
			Help: "Rule evaluations by rule type and outcome",
		}, []string{"rule_type", "outcome"}),

		EvaluateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "duecycle_rule_evaluation_duration_seconds",
			Help:    "Duration of a single rule evaluation including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"rule_type"}),

		BatchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "duecycle_evaluation_batch_duration_seconds",
			Help:    "Duration of a full evaluation pass over due rules",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		DeadlinesOverdue: f.NewCounter(prometheus.CounterOpts{
			Name: "duecycle_deadlines_marked_overdue_total",
			Help: "Deadlines moved from PENDING to OVERDUE by the sweep",
		}),

		DeadlinesComplete: f.NewCounterVec(prometheus.CounterOpts{
			Name: "duecycle_deadlines_completed_total",
			Help: "Deadline completions by lateness",
		}, []string{"late"}),

		Increments: f.NewCounter(prometheus.CounterOpts{
			Name: "duecycle_measurement_increments_total",
			Help: "Measurement increments recorded in the accumulator ledger",
		}),
	}
}

func (m *Metrics) ObserveEvaluation(ruleType, outcome string, d time.Duration) {
	if m != nil {
		m.Evaluations.WithLabelValues(ruleType, outcome).Inc()
		m.EvaluateLatency.WithLabelValues(ruleType).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveBatch(d time.Duration) {
	if m != nil {
		m.BatchLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) AddOverdue(n int) {
	if m != nil && n > 0 {
		m.DeadlinesOverdue.Add(float64(n))
	}
}

func (m *Metrics) IncrementCompleted(late bool) {
	if m == nil {
		return
	}
	label := "false"
	if late {
		label = "true"
	}
	m.DeadlinesComplete.WithLabelValues(label).Inc()
}

func (m *Metrics) IncrementIncrements() {
	if m != nil {
		m.Increments.Inc()
	}
}
