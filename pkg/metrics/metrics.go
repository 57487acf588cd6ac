package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zoom_api"

// Metrics holds the Prometheus collectors for the service on its own registry.
// All recording methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	probeTotal            *prometheus.CounterVec
	reconciliationDeleted prometheus.Counter
	reconciliationFailed  prometheus.Counter
	reconciliationRuns    prometheus.Counter
	recordingsIngested    *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	m.probeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_total",
			Help:      "Media duration probes by result",
		},
		[]string{"result"},
	)
	m.reconciliationDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliation_deleted_total",
		Help:      "Duplicate attachments deleted by reconciliation",
	})
	m.reconciliationFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliation_failed_total",
		Help:      "Duplicate attachments kept because a delete step failed",
	})
	m.reconciliationRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliation_runs_total",
		Help:      "Reconciliation passes started",
	})
	m.recordingsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_ingested_total",
			Help:      "Recordings archived, by whether an attachment was linked",
		},
		[]string{"linked"},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.probeTotal,
		m.reconciliationDeleted,
		m.reconciliationFailed,
		m.reconciliationRuns,
		m.recordingsIngested,
	)
	return m
}

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware returns gin middleware that records HTTP request metrics.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() gin.HandlerFunc {
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// ObserveProbe counts one duration probe.
func (m *Metrics) ObserveProbe(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.probeTotal.WithLabelValues(result).Inc()
}

// ObserveReconciliation counts one reconciliation pass and its outcomes.
func (m *Metrics) ObserveReconciliation(deleted, failed int) {
	if m == nil {
		return
	}
	m.reconciliationRuns.Inc()
	m.reconciliationDeleted.Add(float64(deleted))
	m.reconciliationFailed.Add(float64(failed))
}

// ObserveIngestion counts one archived recording.
func (m *Metrics) ObserveIngestion(linked bool) {
	if m == nil {
		return
	}
	m.recordingsIngested.WithLabelValues(strconv.FormatBool(linked)).Inc()
}
