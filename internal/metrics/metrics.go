// Package metrics holds the Prometheus collectors for ingestion runs and
// upstream calls.  They are exposed by the API server under /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var IngestRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dealfinder_ingest_runs_total",
		Help: "Ingestion operations by operation and outcome",
	},
	[]string{"op", "outcome"},
)

var IngestItems = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dealfinder_ingest_items_total",
		Help: "Items processed by ingestion, by operation and result (created, updated, skipped)",
	},
	[]string{"op", "result"},
)

var UpstreamDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dealfinder_upstream_request_duration_seconds",
		Help:    "Latency of pricing API requests",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "status"},
)

var FetchJobs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dealfinder_fetch_jobs_total",
		Help: "Background fetch jobs by source (api, schedule, cli, queue) and outcome",
	},
	[]string{"source", "outcome"},
)

var once sync.Once

// Init registers every collector with the default registry.  It is safe to
// call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(IngestRuns, IngestItems, UpstreamDuration, FetchJobs)
	})
}

// ObserveUpstream records the duration of one upstream request.
func ObserveUpstream(endpoint, status string, started time.Time) {
	UpstreamDuration.WithLabelValues(endpoint, status).Observe(time.Since(started).Seconds())
}
