// Package system provides system-level services for monitoring and health.
package system

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hongeet.dev/backend/internal/utils"
)

const namespace = "hongeet"

// MetricsService owns a Prometheus registry and the application collectors.
// All recording methods are safe to call on a nil receiver.
type MetricsService struct {
	logger   *utils.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	httpRequestsInProgress prometheus.Gauge

	// WebSocket metrics
	wsConnectionsActive prometheus.Gauge
	wsMessagesTotal     *prometheus.CounterVec

	// Resolution metrics
	resolveAttemptsTotal *prometheus.CounterVec
	resolutionsTotal     *prometheus.CounterVec
	backendCallDuration  *prometheus.HistogramVec
	backendErrorsTotal   *prometheus.CounterVec

	// Search metrics
	searchesTotal       *prometheus.CounterVec
	rankedTracksTotal   *prometheus.CounterVec
	operationsTotal     *prometheus.CounterVec
	mediaProxyBytesSent prometheus.Counter

	// Worker metrics
	workerInFlight  *prometheus.GaugeVec
	workerQueueWait *prometheus.HistogramVec

	// Download metrics
	downloadsTotal     *prometheus.CounterVec
	downloadBytesTotal prometheus.Counter
}

// NewMetricsService creates a new metrics service with its own registry.
func NewMetricsService(logger *utils.Logger) *MetricsService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &MetricsService{
		logger:   logger.Named("metrics_service"),
		registry: reg,
	}

	factory := promauto.With(reg)
	m.initHTTPMetrics(factory)
	m.initResolutionMetrics(factory)
	m.initSearchMetrics(factory)
	m.initWorkerMetrics(factory)
	m.initDownloadMetrics(factory)

	return m
}

// Handler returns an HTTP handler for exposing metrics.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsService) initHTTPMetrics(f promauto.Factory) {
	m.httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"method", "route"},
	)

	m.httpRequestsInProgress = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_progress",
			Help:      "Number of HTTP requests currently in progress",
		},
	)

	m.wsConnectionsActive = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections_active",
			Help:      "Number of active JSON-RPC WebSocket connections",
		},
	)

	m.wsMessagesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Total number of WebSocket messages",
		},
		[]string{"direction"},
	)
}

func (m *MetricsService) initResolutionMetrics(f promauto.Factory) {
	m.resolveAttemptsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_attempts_total",
			Help:      "Extraction attempts by position in the fallback chain and outcome",
		},
		[]string{"attempt", "outcome"},
	)

	m.resolutionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolutions by outcome",
		},
		[]string{"outcome"},
	)

	m.backendCallDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_duration_seconds",
			Help:      "Duration of extraction backend invocations",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"operation"},
	)

	m.backendErrorsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Failed extraction backend invocations",
		},
		[]string{"operation"},
	)
}

func (m *MetricsService) initSearchMetrics(f promauto.Factory) {
	m.searchesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by query class",
		},
		[]string{"class"},
	)

	m.rankedTracksTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranked_tracks_total",
			Help:      "Admitted search candidates by relevance tier",
		},
		[]string{"tier"},
	)

	m.operationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Dispatch operations by name and result kind",
		},
		[]string{"operation", "kind"},
	)

	m.mediaProxyBytesSent = f.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_proxy_bytes_total",
			Help:      "Bytes relayed by the stream proxy",
		},
	)
}

func (m *MetricsService) initWorkerMetrics(f promauto.Factory) {
	m.workerInFlight = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_in_flight",
			Help:      "Operations currently holding a worker slot",
		},
		[]string{"pool"},
	)

	m.workerQueueWait = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_queue_wait_seconds",
			Help:      "Time spent waiting for a worker slot",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"pool"},
	)
}

func (m *MetricsService) initDownloadMetrics(f promauto.Factory) {
	m.downloadsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Downloads by terminal status",
		},
		[]string{"status"},
	)

	m.downloadBytesTotal = f.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written by the download service",
		},
	)
}

// ObserveHTTPRequest records a finished HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// AddHTTPInProgress adjusts the in-progress request gauge.
func (m *MetricsService) AddHTTPInProgress(delta int) {
	if m == nil {
		return
	}
	m.httpRequestsInProgress.Add(float64(delta))
}

// AddWSConnections adjusts the active WebSocket connection gauge.
func (m *MetricsService) AddWSConnections(delta int) {
	if m == nil {
		return
	}
	m.wsConnectionsActive.Add(float64(delta))
}

// IncWSMessages counts a WebSocket message; direction is "in" or "out".
func (m *MetricsService) IncWSMessages(direction string) {
	if m == nil {
		return
	}
	m.wsMessagesTotal.WithLabelValues(direction).Inc()
}

// IncResolveAttempt counts one extraction attempt by its 1-based position.
func (m *MetricsService) IncResolveAttempt(attempt int, ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "ok"
	}
	m.resolveAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), outcome).Inc()
	if ok {
		m.resolutionsTotal.WithLabelValues("ok").Inc()
	}
}

// IncResolutionFailed counts a resolution that exhausted every attempt.
func (m *MetricsService) IncResolutionFailed() {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues("failed").Inc()
}

// ObserveBackendCall records one backend invocation.
func (m *MetricsService) ObserveBackendCall(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.backendCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.backendErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// IncSearch counts a search by query class.
func (m *MetricsService) IncSearch(artist bool) {
	if m == nil {
		return
	}
	class := "generic"
	if artist {
		class = "artist"
	}
	m.searchesTotal.WithLabelValues(class).Inc()
}

// AddRanked counts admitted candidates in a tier.
func (m *MetricsService) AddRanked(tier string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rankedTracksTotal.WithLabelValues(tier).Add(float64(n))
}

// IncOperation counts a dispatch operation by result kind ("ok" on success).
func (m *MetricsService) IncOperation(operation, kind string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, kind).Inc()
}

// AddProxyBytes counts bytes relayed by the stream proxy.
func (m *MetricsService) AddProxyBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.mediaProxyBytesSent.Add(float64(n))
}

// AddInFlight adjusts the worker in-flight gauge.
func (m *MetricsService) AddInFlight(pool string, delta int) {
	if m == nil {
		return
	}
	m.workerInFlight.WithLabelValues(pool).Add(float64(delta))
}

// ObserveQueueWait records the time spent waiting for a worker slot.
func (m *MetricsService) ObserveQueueWait(pool string, d time.Duration) {
	if m == nil {
		return
	}
	m.workerQueueWait.WithLabelValues(pool).Observe(d.Seconds())
}

// IncDownload counts a download reaching a terminal status.
func (m *MetricsService) IncDownload(status string) {
	if m == nil {
		return
	}
	m.downloadsTotal.WithLabelValues(status).Inc()
}

// AddDownloadBytes counts bytes written to disk.
func (m *MetricsService) AddDownloadBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.downloadBytesTotal.Add(float64(n))
}
