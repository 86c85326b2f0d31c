// Package metrics exposes the pipeline's Prometheus instrumentation: one
// histogram for stage duration, one counter for stage outcomes by error
// kind, and a gauge for cumulative run cost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// Registry bundles the pipeline's metric collectors. Callers register it
// once against a prometheus.Registerer at startup.
type Registry struct {
	StageDuration *prometheus.HistogramVec
	StageOutcomes *prometheus.CounterVec
	RunCost       *prometheus.GaugeVec
}

// NewRegistry constructs a Registry and registers its collectors.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prospect_pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of a pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		StageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prospect_pipeline",
			Name:      "stage_outcomes_total",
			Help:      "Count of stage completions by terminal outcome.",
		}, []string{"stage", "outcome"}),
		RunCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "prospect_pipeline",
			Name:      "run_cost_total",
			Help:      "Cumulative cost-accounting units spent by the most recent run per account.",
		}, []string{"account_id"}),
	}

	reg.MustRegister(r.StageDuration, r.StageOutcomes, r.RunCost)
	return r
}

// ObserveStage records a stage's duration and outcome. outcome is either
// "ok" or an ErrorKind string.
func (r *Registry) ObserveStage(stage model.Stage, seconds float64, outcome string) {
	r.StageDuration.WithLabelValues(string(stage)).Observe(seconds)
	r.StageOutcomes.WithLabelValues(string(stage), outcome).Inc()
}

// SetRunCost records a run's cumulative cost for the given account.
func (r *Registry) SetRunCost(accountID string, cost float64) {
	r.RunCost.WithLabelValues(accountID).Set(cost)
}
