// ABOUTME: Prometheus collectors for the MCP gateway and the logging proxy
// ABOUTME: Each server owns a registry; all recording methods are nil-safe

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tool call outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeUnknown = "unknown_tool"
	OutcomeError   = "error"
)

var toolBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}

var upstreamBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Gateway provides observability for the MCP endpoint.
type Gateway struct {
	registry *prometheus.Registry

	// JSON-RPC responses by method and error code ("0" for success)
	RPCRequests *prometheus.CounterVec

	// Tool calls by tool and outcome
	ToolCalls *prometheus.CounterVec

	// Tool handler latency
	ToolLatency *prometheus.HistogramVec
}

// NewGateway creates gateway metrics on a fresh registry.
func NewGateway() *Gateway {
	reg := newRegistry()
	factory := promauto.With(reg)

	return &Gateway{
		registry: reg,

		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cmf_gateway_rpc_requests_total",
			Help: "Total JSON-RPC responses by method and error code",
		}, []string{"method", "code"}),

		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cmf_gateway_tool_calls_total",
			Help: "Total tools/call invocations by tool and outcome",
		}, []string{"tool", "outcome"}), // outcome: "ok", "unknown_tool", "error"

		ToolLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cmf_gateway_tool_duration_seconds",
			Help:    "Duration of tool handler execution",
			Buckets: toolBuckets,
		}, []string{"tool"}),
	}
}

// IncrementRPC records one JSON-RPC response.
func (m *Gateway) IncrementRPC(method, code string) {
	if m != nil {
		m.RPCRequests.WithLabelValues(method, code).Inc()
	}
}

// ObserveToolCall records a tool call outcome and its duration.
func (m *Gateway) ObserveToolCall(tool, outcome string, d time.Duration) {
	if m != nil {
		m.ToolCalls.WithLabelValues(tool, outcome).Inc()
		if outcome != OutcomeUnknown {
			m.ToolLatency.WithLabelValues(tool).Observe(d.Seconds())
		}
	}
}

// Handler serves the gateway registry.
func (m *Gateway) Handler() http.Handler {
	return handlerFor(m.registry)
}

// Proxy provides observability for the passthrough proxy.
type Proxy struct {
	registry *prometheus.Registry

	// Forwarded calls by JSON-RPC method and result status
	Forwarded *prometheus.CounterVec

	// Upstream round-trip latency
	UpstreamLatency *prometheus.HistogramVec

	// Events waiting to be drained
	BufferedEvents prometheus.Gauge
}

// NewProxy creates proxy metrics on a fresh registry.
func NewProxy() *Proxy {
	reg := newRegistry()
	factory := promauto.With(reg)

	return &Proxy{
		registry: reg,

		Forwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cmf_proxy_forwarded_total",
			Help: "Total proxied calls by JSON-RPC method and status",
		}, []string{"method", "status"}), // status: upstream HTTP code or "error"

		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cmf_proxy_upstream_duration_seconds",
			Help:    "Duration of upstream round trips",
			Buckets: upstreamBuckets,
		}, []string{"method"}),

		BufferedEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cmf_proxy_buffered_events",
			Help: "Number of log events waiting to be drained",
		}),
	}
}

// ObserveForward records one proxied call.
func (m *Proxy) ObserveForward(method, status string, d time.Duration) {
	if m != nil {
		m.Forwarded.WithLabelValues(method, status).Inc()
		m.UpstreamLatency.WithLabelValues(method).Observe(d.Seconds())
	}
}

// SetBuffered records the current event log length.
func (m *Proxy) SetBuffered(n int) {
	if m != nil {
		m.BufferedEvents.Set(float64(n))
	}
}

// Handler serves the proxy registry.
func (m *Proxy) Handler() http.Handler {
	return handlerFor(m.registry)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func handlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
