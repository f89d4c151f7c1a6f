package mcp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "mcpd_"

// Metrics records server activity. A nil *Metrics records nothing.
type Metrics struct {
	activeConnections prometheus.Gauge
	connections       prometheus.Counter
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// NewMetrics registers the server collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: MetricsPrefix + "active_connections",
			Help: "Number of currently open peer connections",
		}),
		connections: f.NewCounter(prometheus.CounterOpts{
			Name: MetricsPrefix + "connections_total",
			Help: "Number of accepted peer connections",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "requests_total",
			Help: "Number of JSON-RPC requests handled, by method and outcome",
		}, []string{"method", "outcome"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricsPrefix + "request_duration_seconds",
			Help:    "Time taken to dispatch a JSON-RPC request",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.activeConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// RecordRequest counts one dispatched message under the label produced by
// methodLabel; undecodable messages are recorded as "invalid".
func (m *Metrics) RecordRequest(method string, resp *Response, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if resp != nil && resp.Error != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(took.Seconds())
}
