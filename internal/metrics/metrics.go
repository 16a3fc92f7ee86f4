// Package metrics holds the Prometheus collectors of the service. All
// recording methods are safe on a nil *Collector so components can run
// without metrics in tests and in the CLI.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Mutations        *prometheus.CounterVec
	SnapshotsApplied *prometheus.CounterVec
	WriteFailures    *prometheus.CounterVec
	PartitionState   *prometheus.GaugeVec

	Estimations *prometheus.CounterVec
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	Exports *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_mutations_total",
			Help:      "Local edits applied to a month tree",
		}, []string{"op"}),
		SnapshotsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_applied_total",
			Help:      "Remote snapshots that replaced a month tree",
		}, []string{"month"}),
		WriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_write_failures_total",
			Help:      "Failed writes to the document store",
		}, []string{"kind"}),
		PartitionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "partition_state",
			Help:      "1 for the current state of each month partition",
		}, []string{"month", "state"}),
		Estimations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimation_requests_total",
			Help:      "Estimation requests by outcome",
		}, []string{"outcome"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimation_cache_hits_total",
			Help:      "Estimation results served from cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimation_cache_misses_total",
			Help:      "Estimation requests that missed the cache",
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_exports_total",
			Help:      "Month exports to Google Sheets by status",
		}, []string{"status"}),
	}

	c.registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.Mutations, c.SnapshotsApplied, c.WriteFailures, c.PartitionState,
		c.Estimations, c.CacheHits, c.CacheMisses,
		c.Exports,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordMutation(op string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(op).Inc()
}

func (c *Collector) RecordSnapshot(month string) {
	if c == nil {
		return
	}
	c.SnapshotsApplied.WithLabelValues(month).Inc()
}

func (c *Collector) RecordWriteFailure(kind string) {
	if c == nil {
		return
	}
	c.WriteFailures.WithLabelValues(kind).Inc()
}

// SetPartitionState marks state as the current one for month.
func (c *Collector) SetPartitionState(month string, state string, all []string) {
	if c == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		c.PartitionState.WithLabelValues(month, s).Set(v)
	}
}

func (c *Collector) RecordEstimation(outcome string) {
	if c == nil {
		return
	}
	c.Estimations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

func (c *Collector) RecordExport(err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Exports.WithLabelValues(status).Inc()
}
