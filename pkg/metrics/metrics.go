package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics tracks outbound calls against the shop API.
type ClientMetrics struct {
	Registry  *prometheus.Registry
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewClientMetrics(subsystem string) *ClientMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopctl",
		Subsystem: subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of outbound HTTP requests.",
	}, []string{"operation", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shopctl",
		Subsystem: subsystem,
		Name:      "http_request_duration_ms",
		Help:      "Outbound HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"operation"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(requests, latency)
	return &ClientMetrics{Registry: reg, Requests: requests, LatencyMS: latency}
}

// Observe records one call. status is the HTTP code or an error class.
func (m *ClientMetrics) Observe(operation, status string, latencyMS float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(operation, status).Inc()
	m.LatencyMS.WithLabelValues(operation).Observe(latencyMS)
}

func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
