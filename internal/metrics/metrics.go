// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	conceptsDiscoveredTotal prometheus.Counter
	capturesTotal           *prometheus.CounterVec
	cacheLookupsTotal       *prometheus.CounterVec
	runsTotal               *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		conceptsDiscoveredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "concepts_discovered_total",
				Help: "Total candidate concepts discovered across runs.",
			},
		)

		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concepts_captures_total",
				Help: "Total screenshot refresh outcomes, labeled by status.",
			},
			[]string{"status"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concepts_cache_lookups_total",
				Help: "Total screenshot cache lookups, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concepts_runs_total",
				Help: "Total pipeline runs, labeled by status.",
			},
			[]string{"status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDiscovered adds to the discovered-candidates counter.
func ObserveDiscovered(count int) {
	Init()
	conceptsDiscoveredTotal.Add(float64(count))
}

// ObserveCapture counts one screenshot refresh outcome.
func ObserveCapture(status string) {
	Init()
	capturesTotal.WithLabelValues(status).Inc()
}

// ObserveCacheLookup counts a cache lookup outcome (hit or refresh).
func ObserveCacheLookup(outcome string) {
	Init()
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun counts one pipeline run by final status.
func ObserveRun(status string) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
}
