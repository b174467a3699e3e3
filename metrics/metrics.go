// Package metrics exposes Prometheus metrics for the HTTP layer and the leave
// lifecycle. A Collector owns its registry so several can coexist in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/leave-engine/generic"
)

// Collector implements timeoff.Observer.
type Collector struct {
	registry *prometheus.Registry

	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec

	leavesAppliedTotal    prometheus.Counter
	leavesCancelledTotal  prometheus.Counter
	leaveTransitionsTotal *prometheus.CounterVec
	bulkItemsTotal        *prometheus.CounterVec
	sweepApprovedTotal    prometheus.Counter
	sweepDuration         prometheus.Histogram
	sweepLastRun          prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		apiRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		leavesAppliedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leave_requests_applied_total",
			Help: "Total number of leave requests created",
		}),
		leavesCancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leave_requests_cancelled_total",
			Help: "Total number of Pending leave requests cancelled by their owner",
		}),
		leaveTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leave_transitions_total",
				Help: "Terminal transitions by target status and source (manager, system)",
			},
			[]string{"status", "source"},
		),
		bulkItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leave_bulk_items_total",
				Help: "Items processed by bulk decisions, by outcome",
			},
			[]string{"outcome"},
		),
		sweepApprovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leave_sweep_approved_total",
			Help: "Requests auto-approved by the sweep",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leave_sweep_duration_seconds",
			Help:    "Duration of auto-approval sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		sweepLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leave_sweep_last_run_timestamp_seconds",
			Help: "Unix time of the last completed sweep",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.apiRequestsTotal,
		c.apiRequestDuration,
		c.leavesAppliedTotal,
		c.leavesCancelledTotal,
		c.leaveTransitionsTotal,
		c.bulkItemsTotal,
		c.sweepApprovedTotal,
		c.sweepDuration,
		c.sweepLastRun,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// =============================================================================
// HTTP INSTRUMENTATION
// =============================================================================

// unmatchedRoute labels requests no route matched, so scans of random paths
// share one series.
const unmatchedRoute = "unmatched"

// Middleware records request counts and latency, labelled by chi route
// pattern so ids do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.apiRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		c.apiRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// =============================================================================
// LIFECYCLE OBSERVER
// =============================================================================

func (c *Collector) LeaveApplied() { c.leavesAppliedTotal.Inc() }

func (c *Collector) LeaveTransitioned(to generic.Status, source string) {
	c.leaveTransitionsTotal.WithLabelValues(string(to), source).Inc()
}

func (c *Collector) LeaveCancelled() { c.leavesCancelledTotal.Inc() }

func (c *Collector) BulkDecided(updated, skipped int) {
	c.bulkItemsTotal.WithLabelValues("updated").Add(float64(updated))
	c.bulkItemsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

func (c *Collector) SweepCompleted(approved int, took time.Duration) {
	c.sweepApprovedTotal.Add(float64(approved))
	c.sweepDuration.Observe(took.Seconds())
	c.sweepLastRun.SetToCurrentTime()
}
