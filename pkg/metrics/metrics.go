// Package metrics provides Prometheus metrics for the pbv2 service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts evaluations by mode and outcome (ok, findings, invalid).
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pbv2",
			Subsystem: "evaluation",
			Name:      "evaluations_total",
			Help:      "Total number of tree evaluations by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pbv2",
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "Duration of a single tree evaluation in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"mode"},
	)

	// FindingsTotal counts findings by code and severity across validations and evaluations.
	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pbv2",
			Subsystem: "findings",
			Name:      "total",
			Help:      "Total number of findings reported by code and severity",
		},
		[]string{"code", "severity"},
	)

	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pbv2",
			Subsystem: "validation",
			Name:      "validations_total",
			Help:      "Total number of publish validations by outcome",
		},
		[]string{"outcome"},
	)

	GateRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pbv2",
			Subsystem: "gate",
			Name:      "rejections_total",
			Help:      "Total number of evaluations rejected by the evaluation gate",
		},
		[]string{"mode", "status"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pbv2",
			Subsystem: "batch",
			Name:      "size",
			Help:      "Number of selection sets per batch evaluation",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 200},
		},
	)

	// CacheRequestsTotal counts cache lookups by cache (tree, result) and result (hit, miss).
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pbv2",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Total number of cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pbv2",
			Subsystem: "kafka",
			Name:      "events_published_total",
			Help:      "Total number of evaluation events published by status",
		},
		[]string{"status"},
	)
)

func Outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "findings"
}

func CacheResult(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
