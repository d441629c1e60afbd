// Package metrics exports placement progress to Prometheus.
//
// A Recorder implements optim.StepHook; NewRouter serves its registry on
// /metrics next to a /healthz liveness check so long runs can be scraped.
package metrics

import (
	"math"
	"sync"

	"github.com/born-ml/gplace/internal/optim"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gplace"

// Recorder collects optimizer and placement quality metrics.
type Recorder struct {
	registry *prometheus.Registry

	iteration   *prometheus.GaugeVec
	evaluations *prometheus.CounterVec
	stepSize    *prometheus.GaugeVec
	momentum    *prometheus.GaugeVec
	objective   *prometheus.GaugeVec
	passes      *prometheus.HistogramVec
	hpwl        prometheus.Gauge
	failures    *prometheus.CounterVec

	mu        sync.Mutex
	lastEvals map[string]int
}

// Compile-time check that Recorder is a step hook.
var _ optim.StepHook = (*Recorder)(nil)

// NewRecorder creates a recorder with its own registry. runID is attached to
// every series as a constant label.
func NewRecorder(runID string) *Recorder {
	labels := prometheus.Labels{"run_id": runID}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		iteration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "iteration",
			Help:        "Completed optimizer steps.",
			ConstLabels: labels,
		}, []string{"optimizer"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "objective_evaluations_total",
			Help:        "Objective evaluations performed by the optimizer.",
			ConstLabels: labels,
		}, []string{"optimizer"}),
		stepSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "step_size",
			Help:        "Step size after the last optimizer step.",
			ConstLabels: labels,
		}, []string{"optimizer"}),
		momentum: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "momentum",
			Help:        "Nesterov momentum coefficient.",
			ConstLabels: labels,
		}, []string{"optimizer"}),
		objective: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "objective",
			Help:        "Objective value at the committed iterate.",
			ConstLabels: labels,
		}, []string{"optimizer"}),
		passes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "refinement_passes",
			Help:        "Step size refinement passes per optimizer step.",
			ConstLabels: labels,
			Buckets:     prometheus.LinearBuckets(1, 1, optim.DefaultMaxBacktracks),
		}, []string{"optimizer"}),
		hpwl: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "hpwl",
			Help:        "Half-perimeter wirelength of the current placement.",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "step_failures_total",
			Help:        "Optimizer steps that failed, by error class.",
			ConstLabels: labels,
		}, []string{"class"}),
		lastEvals: make(map[string]int),
	}
	r.registry.MustRegister(r.iteration, r.evaluations, r.stepSize, r.momentum,
		r.objective, r.passes, r.hpwl, r.failures)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// OnStep records the stats of a completed step.
func (r *Recorder) OnStep(optimizer string, s optim.Stats) {
	r.mu.Lock()
	delta := s.Evaluations - r.lastEvals[optimizer]
	r.lastEvals[optimizer] = s.Evaluations
	r.mu.Unlock()

	r.iteration.WithLabelValues(optimizer).Set(float64(s.Iteration))
	if delta > 0 {
		r.evaluations.WithLabelValues(optimizer).Add(float64(delta))
	}
	r.stepSize.WithLabelValues(optimizer).Set(s.StepSize)
	if optimizer == "nesterov" {
		r.momentum.WithLabelValues(optimizer).Set(s.Momentum)
		r.passes.WithLabelValues(optimizer).Observe(float64(s.Backtracks))
	}
	if !math.IsNaN(s.Objective) {
		r.objective.WithLabelValues(optimizer).Set(s.Objective)
	}
}

// ObserveHPWL records the exact wirelength of the current placement.
func (r *Recorder) ObserveHPWL(v float64) {
	r.hpwl.Set(v)
}

// ObserveFailure counts a failed step; class is "config", "capability",
// "numerical" or "other".
func (r *Recorder) ObserveFailure(class string) {
	r.failures.WithLabelValues(class).Inc()
}
