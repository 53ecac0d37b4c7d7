package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the video delivery service.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	uploadsTotal      prometheus.Counter
	transcodesTotal   *prometheus.CounterVec
	activeTranscodes  prometheus.Gauge
	tokensIssuedTotal prometheus.Counter
	tokensDeniedTotal prometheus.Counter
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lessonstream_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lessonstream_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	uploadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lessonstream_uploads_total",
		Help: "Total number of accepted video uploads",
	})
	transcodesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonstream_transcodes_total",
		Help: "Total number of finished transcode tasks by result (ready, failed, superseded)",
	}, []string{"result"})
	activeTranscodes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lessonstream_active_transcodes",
		Help: "Number of transcode tasks currently running",
	})
	tokensIssuedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lessonstream_tokens_issued_total",
		Help: "Total number of capability tokens issued",
	})
	tokensDeniedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lessonstream_tokens_denied_total",
		Help: "Total number of segment requests rejected for a bad or expired token",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		uploadsTotal,
		transcodesTotal,
		activeTranscodes,
		tokensIssuedTotal,
		tokensDeniedTotal,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		uploadsTotal:      uploadsTotal,
		transcodesTotal:   transcodesTotal,
		activeTranscodes:  activeTranscodes,
		tokensIssuedTotal: tokensIssuedTotal,
		tokensDeniedTotal: tokensDeniedTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncUploads increments the accepted-uploads counter.
func (m *Metrics) IncUploads() {
	m.uploadsTotal.Inc()
}

// IncTranscodes increments the transcode counter for the given result label.
func (m *Metrics) IncTranscodes(result string) {
	m.transcodesTotal.WithLabelValues(result).Inc()
}

// TranscodeStarted increments the active transcode gauge.
func (m *Metrics) TranscodeStarted() {
	m.activeTranscodes.Inc()
}

// TranscodeFinished decrements the active transcode gauge.
func (m *Metrics) TranscodeFinished() {
	m.activeTranscodes.Dec()
}

// IncTokensIssued increments the issued-tokens counter.
func (m *Metrics) IncTokensIssued() {
	m.tokensIssuedTotal.Inc()
}

// IncTokensDenied increments the denied-tokens counter.
func (m *Metrics) IncTokensDenied() {
	m.tokensDeniedTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
