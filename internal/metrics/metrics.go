// Package metrics holds the Prometheus collectors exported on the metrics
// server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llmroute",
		Name:      "decisions_total",
		Help:      "Routing decisions by router and routed side",
	}, []string{"router", "side"})

	estimateErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llmroute",
		Name:      "estimate_errors_total",
		Help:      "Failed win-rate estimates by router",
	}, []string{"router"})

	estimateLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "llmroute",
		Name:      "estimate_latency_seconds",
		Help:      "Latency of a single win-rate estimate",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"router"})

	winRate = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "llmroute",
		Name:      "win_rate",
		Help:      "Distribution of estimated strong-model win rates",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"router"})
)

// ObserveDecision records a successful decision.
func ObserveDecision(router, side string, w float64, took time.Duration) {
	decisionsTotal.WithLabelValues(router, side).Inc()
	winRate.WithLabelValues(router).Observe(w)
	estimateLatency.WithLabelValues(router).Observe(took.Seconds())
}

// ObserveError records a failed estimate.
func ObserveError(router string, took time.Duration) {
	estimateErrorsTotal.WithLabelValues(router).Inc()
	estimateLatency.WithLabelValues(router).Observe(took.Seconds())
}
