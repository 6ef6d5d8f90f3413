// Package metrics exposes cook's build metrics over an optional
// --metrics-addr HTTP listener, grounded on shoal-provision's
// provisioner/metrics package (same client, same registry-per-instance
// shape), generalized from a package-global registry to one owned by
// the engine context (DESIGN NOTES §9: no singletons beyond the
// intern table).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds one build run's Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	recipesTotal   *prometheus.CounterVec
	recipesRunning prometheus.Gauge
	buildDuration  *prometheus.HistogramVec
}

// New creates a Recorder with a private registry, so multiple Engine
// instances (as in tests) never collide on Prometheus's default
// global registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	recipesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cook",
		Name:      "recipes_total",
		Help:      "Total recipe nodes walked, labeled by outcome.",
	}, []string{"outcome"})

	recipesRunning := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cook",
		Name:      "recipes_running",
		Help:      "Recipe nodes currently executing their body.",
	})

	buildDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cook",
		Name:      "build_duration_seconds",
		Help:      "Wall-clock duration of one recipe node's body.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"outcome"})

	registry.MustRegister(recipesTotal, recipesRunning, buildDuration)

	return &Recorder{
		registry:       registry,
		recipesTotal:   recipesTotal,
		recipesRunning: recipesRunning,
		buildDuration:  buildDuration,
	}
}

// Outcome labels a completed recipe node the way internal/walker's
// State enum names its terminal states.
type Outcome string

const (
	OutcomeUpToDate Outcome = "done_up_to_date"
	OutcomeRebuilt  Outcome = "done_rebuilt"
	OutcomeFailed   Outcome = "failed"
)

// RecipeStarted marks one recipe node as entering its body evaluation.
func (r *Recorder) RecipeStarted() {
	r.recipesRunning.Inc()
}

// RecipeFinished records a completed recipe node's outcome and the
// duration its body evaluation took.
func (r *Recorder) RecipeFinished(outcome Outcome, d time.Duration) {
	r.recipesRunning.Dec()
	r.recipesTotal.WithLabelValues(string(outcome)).Inc()
	r.buildDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

// Handler returns an http.Handler exposing this Recorder's metrics in
// Prometheus text format, for mounting on --metrics-addr.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
