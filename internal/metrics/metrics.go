// Package metrics provides Prometheus metrics for the content engine
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Every method is safe on a nil receiver so services can
// run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Lifecycle metrics
	OperationsTotal   *prometheus.CounterVec
	CancelledTotal    *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	LockWaitDuration  *prometheus.HistogramVec

	// Snapshot metrics
	SnapshotLookupsTotal *prometheus.CounterVec
	RebuildItemsTotal    *prometheus.CounterVec
	RebuildDuration      prometheus.Histogram

	// Scheduler metrics
	ScheduledItemsTotal *prometheus.CounterVec
}

// NewMetrics creates metrics registered on their own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_lifecycle_operations_total",
			Help: "Total number of lifecycle operations",
		},
		[]string{"operation", "status"},
	)

	m.CancelledTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_lifecycle_cancelled_total",
			Help: "Lifecycle operations vetoed by a before handler",
		},
		[]string{"operation"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_lifecycle_operation_duration_seconds",
			Help:    "Duration of lifecycle operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.LockWaitDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_operation_lock_wait_seconds",
			Help:    "Time spent waiting for a named operation lock",
			Buckets: []float64{.0001, .001, .01, .1, .5, 1, 5},
		},
		[]string{"lock"},
	)

	m.SnapshotLookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_snapshot_lookups_total",
			Help: "Snapshot reads by source",
		},
		[]string{"source"}, // cache, store, generated, unpublished
	)

	m.RebuildItemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_snapshot_rebuild_items_total",
			Help: "Nodes processed by full snapshot rebuilds",
		},
		[]string{"status"},
	)

	m.RebuildDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "folio_snapshot_rebuild_duration_seconds",
			Help:    "Duration of full snapshot rebuilds in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	m.ScheduledItemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_scheduled_items_total",
			Help: "Nodes processed by release and expiration scans",
		},
		[]string{"scan", "status"},
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOperation records a lifecycle operation outcome
func (m *Metrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCancelled records an operation vetoed by a before handler
func (m *Metrics) RecordCancelled(operation string) {
	if m == nil {
		return
	}
	m.CancelledTotal.WithLabelValues(operation).Inc()
}

// RecordLockWait records time spent acquiring a named lock
func (m *Metrics) RecordLockWait(lock string, wait time.Duration) {
	if m == nil {
		return
	}
	m.LockWaitDuration.WithLabelValues(lock).Observe(wait.Seconds())
}

// RecordSnapshotLookup records where a snapshot read was served from
func (m *Metrics) RecordSnapshotLookup(source string) {
	if m == nil {
		return
	}
	m.SnapshotLookupsTotal.WithLabelValues(source).Inc()
}

// RecordRebuild records the outcome of a full rebuild
func (m *Metrics) RecordRebuild(processed, failed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RebuildItemsTotal.WithLabelValues("success").Add(float64(processed))
	m.RebuildItemsTotal.WithLabelValues("error").Add(float64(failed))
	m.RebuildDuration.Observe(duration.Seconds())
}

// RecordScheduled records the outcome of a release or expiration scan
func (m *Metrics) RecordScheduled(scan string, processed, failed int) {
	if m == nil {
		return
	}
	m.ScheduledItemsTotal.WithLabelValues(scan, "success").Add(float64(processed))
	m.ScheduledItemsTotal.WithLabelValues(scan, "error").Add(float64(failed))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
