// Package metrics exposes the Prometheus instrumentation for investigation
// runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts completed investigation runs by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inquest",
		Name:      "runs_total",
		Help:      "Completed investigation runs by outcome.",
	}, []string{"outcome"})

	// RunDuration observes end-to-end run latency.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inquest",
		Name:      "run_duration_seconds",
		Help:      "End-to-end investigation run duration.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// EvidenceItems counts collected evidence items by kind.
	EvidenceItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inquest",
		Name:      "evidence_items_total",
		Help:      "Evidence items collected, by kind.",
	}, []string{"kind"})

	// ProviderFailures counts swallowed provider invocation failures by
	// capability category.
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inquest",
		Name:      "provider_failures_total",
		Help:      "Provider invocations that produced no evidence, by capability.",
	}, []string{"capability"})

	// Iterations observes how many extra iterations each run needed.
	Iterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inquest",
		Name:      "run_iterations",
		Help:      "Iteration count per investigation run.",
		Buckets:   []float64{0, 1, 2, 3},
	})
)
