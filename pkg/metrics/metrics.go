// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DefinitionsCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "definitions_cache_lookups_total",
			Help: "Definitions cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	DefinitionsCompileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "definitions_compile_duration_seconds",
			Help:    "Time spent compiling a definitions payload",
			Buckets: prometheus.DefBuckets,
		},
	)

	Propagations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feature_propagations_total",
			Help: "Feature change notifications by trigger",
		},
		[]string{"trigger"},
	)

	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_runs_total",
			Help: "Background job executions by job name and outcome",
		},
		[]string{"job", "outcome"},
	)

	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sdk_stream_clients",
			Help: "Connected SDK stream clients on this instance",
		},
	)

	registerOnce sync.Once
)

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DefinitionsCacheLookups,
			DefinitionsCompileDuration,
			Propagations,
			JobRuns,
			StreamClients,
		)
	})
}
