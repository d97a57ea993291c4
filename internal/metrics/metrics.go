// Package metrics exports Prometheus metrics for the interaction
// engine and its HTTP surface. All metrics register with the default
// registry during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	KBLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rxguard_kb_lookups_total",
			Help: "Knowledge source lookups by source and outcome (hit, miss, error)",
		},
		[]string{"source", "outcome"},
	)

	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rxguard_checks_total",
			Help: "Interaction checks by mode (single, multi)",
		},
		[]string{"mode"},
	)

	UnsafeResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rxguard_unsafe_results_total",
			Help: "Checks that could not report all-clear (critical or unknown findings present)",
		},
	)

	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(KBLookupsTotal)
	prometheus.MustRegister(ChecksTotal)
	prometheus.MustRegister(UnsafeResultsTotal)
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
}
