package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Viewer metrics
	Opens         *prometheus.CounterVec
	OpenDuration  *prometheus.HistogramVec
	FetchWarnings prometheus.Counter
	Scripts       *prometheus.CounterVec
	ViewersActive prometheus.Gauge

	// Catalog metrics
	Imports     *prometheus.CounterVec
	CatalogApps prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON API.
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	Opens          int64   `json:"opens"`
	StaleOpens     int64   `json:"stale_opens"`
	FailedScripts  int64   `json:"failed_scripts"`
	Imports        int64   `json:"imports"`
	AbortedImports int64   `json:"aborted_imports"`
	AvgDurationMS  float64 `json:"avg_request_ms"`
	UptimeSeconds  float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector registered with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector registered with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	// HTTP metrics
	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apphost_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apphost_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
	m.RequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apphost_http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)
	m.ResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apphost_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)

	// Viewer metrics
	m.Opens = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apphost_viewer_opens_total",
			Help: "Total number of bundle opens by outcome",
		},
		[]string{"outcome"},
	)
	m.OpenDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apphost_viewer_open_duration_seconds",
			Help:    "Bundle open duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)
	m.FetchWarnings = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "apphost_fetch_warnings_total",
			Help: "Total number of bundle resources that could not be read",
		},
	)
	m.Scripts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apphost_scripts_total",
			Help: "Total number of bundle script executions by result",
		},
		[]string{"result"},
	)
	m.ViewersActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "apphost_viewers_active",
			Help: "Number of open viewers",
		},
	)

	// Catalog metrics
	m.Imports = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apphost_imports_total",
			Help: "Total number of bundle imports by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	m.CatalogApps = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "apphost_catalog_apps",
			Help: "Number of apps in the catalog",
		},
	)

	// WebSocket metrics
	m.WSConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "apphost_ws_connections",
			Help: "Number of active WebSocket connections",
		},
	)
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apphost_ws_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	// System metrics
	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "apphost_uptime_seconds",
			Help: "Uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordOpen records one viewer open.
func (m *Metrics) RecordOpen(outcome string, d time.Duration) {
	m.Opens.WithLabelValues(outcome).Inc()
	m.OpenDuration.WithLabelValues(outcome).Observe(d.Seconds())

	m.mu.Lock()
	m.snapshot.Opens++
	if outcome == "stale" {
		m.snapshot.StaleOpens++
	}
	m.mu.Unlock()
}

// RecordFetchWarnings records unreadable resources of one open.
func (m *Metrics) RecordFetchWarnings(n int) {
	if n > 0 {
		m.FetchWarnings.Add(float64(n))
	}
}

// RecordScript records one script execution.
func (m *Metrics) RecordScript(failed bool) {
	result := "ok"
	if failed {
		result = "failed"
		m.mu.Lock()
		m.snapshot.FailedScripts++
		m.mu.Unlock()
	}
	m.Scripts.WithLabelValues(result).Inc()
}

// RecordImport records one bundle import.
func (m *Metrics) RecordImport(source string, ok bool) {
	outcome := "imported"
	if !ok {
		outcome = "aborted"
	}
	m.Imports.WithLabelValues(source, outcome).Inc()

	m.mu.Lock()
	if ok {
		m.snapshot.Imports++
	} else {
		m.snapshot.AbortedImports++
	}
	m.mu.Unlock()
}

// SetViewersActive sets the number of open viewers
func (m *Metrics) SetViewersActive(count int) {
	m.ViewersActive.Set(float64(count))
}

// SetCatalogApps sets the number of apps in the catalog
func (m *Metrics) SetCatalogApps(count int) {
	m.CatalogApps.Set(float64(count))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns the current JSON view.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	if s.TotalRequests > 0 {
		s.AvgDurationMS = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
