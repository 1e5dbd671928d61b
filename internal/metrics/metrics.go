package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	pollsTotal        *prometheus.CounterVec
	exportsTotal      *prometheus.CounterVec
	exportBytes       *prometheus.HistogramVec
	upstreamUp        prometheus.Gauge
}

// NewMetrics creates the collectors on a registry of their own
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teb_polls_total",
			Help: "Telemetry API polls by task and outcome.",
		}, []string{"task", "outcome"}),
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teb_exports_total",
			Help: "Report exports by kind and outcome.",
		}, []string{"kind", "outcome"}),
		exportBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teb_export_bytes",
			Help:    "Size of delivered exports by kind.",
			Buckets: prometheus.ExponentialBuckets(4096, 4, 8),
		}, []string{"kind"}),
		upstreamUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teb_upstream_connected",
			Help: "1 when the last realtime poll succeeded, 0 otherwise.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.pollsTotal,
		m.exportsTotal,
		m.exportBytes,
		m.upstreamUp,
	)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and their latency under route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Poll records the outcome of one scheduled poll
func (m *Metrics) Poll(task string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.pollsTotal.WithLabelValues(task, outcome).Inc()
}

// Export records one export attempt; size is ignored unless outcome is ok
func (m *Metrics) Export(kind, outcome string, size int) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(kind, outcome).Inc()
	if outcome == OutcomeOK {
		m.exportBytes.WithLabelValues(kind).Observe(float64(size))
	}
}

// Connection sets the upstream connection gauge
func (m *Metrics) Connection(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.upstreamUp.Set(1)
	} else {
		m.upstreamUp.Set(0)
	}
}
