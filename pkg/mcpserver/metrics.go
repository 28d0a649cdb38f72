package mcpserver

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for tool calls. Each instance owns
// its registry so several servers can live in one process.
type Metrics struct {
	Registry     *prometheus.Registry
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		CallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskfs_tool_calls_total",
				Help: "Total number of tool calls by tool and result code",
			},
			[]string{"tool", "code"},
		),
		CallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskfs_tool_call_duration_seconds",
				Help:    "Tool call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"tool"},
		),
	}
}

// Observe records one call. An empty code counts as "ok".
func (m *Metrics) Observe(tool, code string, d time.Duration) {
	if code == "" {
		code = "ok"
	}
	m.CallsTotal.WithLabelValues(tool, code).Inc()
	m.CallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
