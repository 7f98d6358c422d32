package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for mikopo.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Tool invocation metrics.
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	// Assessment metrics.
	AssessmentsTotal *prometheus.CounterVec
	DecisionsTotal   *prometheus.CounterVec

	// Supervisor metrics.
	SupervisorTransitionsTotal *prometheus.CounterVec

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mikopo",
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total credit tool invocations.",
		}, []string{"tool", "status"}),

		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mikopo",
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Credit tool invocation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		AssessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mikopo",
			Subsystem: "broker",
			Name:      "assessments_total",
			Help:      "Total loan assessments by execution path.",
		}, []string{"path", "status"}),

		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mikopo",
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Total underwriting decisions rendered.",
		}, []string{"decision"}),

		SupervisorTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mikopo",
			Subsystem: "supervisor",
			Name:      "transitions_total",
			Help:      "Total worker state transitions.",
		}, []string{"worker", "state"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mikopo",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mikopo",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mikopo",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	// Register all collectors.
	reg.MustRegister(
		m.ToolCallsTotal,
		m.ToolCallDuration,
		m.AssessmentsTotal,
		m.DecisionsTotal,
		m.SupervisorTransitionsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}
