// Package metrics exposes Prometheus instruments for template rendering and
// funnel compilation.
//
//	RecordRender(1, 250*time.Microsecond)
//	RecordFunnelCompile("count", "ok", 3)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TemplateRendersTotal counts rendered templates by outcome.
	TemplateRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitelens_template_renders_total",
			Help: "Total number of rendered SQL templates",
		},
		[]string{"outcome"},
	)

	// TemplateRenderDuration tracks how long rendering takes.
	TemplateRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitelens_template_render_duration_seconds",
			Help:    "Duration of SQL template rendering in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	// UnresolvedDirectivesTotal counts directives left in rendered output.
	UnresolvedDirectivesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitelens_template_unresolved_directives_total",
			Help: "Total number of directives left unresolved after rendering",
		},
	)

	// SuspiciousValuesTotal counts custom variable values flagged by injection screening.
	SuspiciousValuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitelens_template_suspicious_values_total",
			Help: "Total number of variable values flagged as possible SQL injection",
		},
		[]string{"action"},
	)

	// FunnelCompilesTotal counts funnel compilations by mode and outcome.
	FunnelCompilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitelens_funnel_compiles_total",
			Help: "Total number of compiled funnel queries",
		},
		[]string{"mode", "outcome"},
	)

	// FunnelSteps tracks the number of steps per compiled funnel.
	FunnelSteps = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitelens_funnel_steps",
			Help:    "Number of steps in compiled funnels",
			Buckets: []float64{2, 3, 4, 5, 6, 8, 10, 15, 20},
		},
		[]string{"mode"},
	)

	// MCPCallsTotal counts JSON-RPC calls on the MCP endpoint by method, tool and outcome.
	MCPCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitelens_mcp_calls_total",
			Help: "Total number of MCP JSON-RPC calls",
		},
		[]string{"method", "tool", "outcome"},
	)
)

// RecordRender records one rendered template.
func RecordRender(unresolved int, duration time.Duration) {
	outcome := "resolved"
	if unresolved > 0 {
		outcome = "partial"
	}
	TemplateRendersTotal.WithLabelValues(outcome).Inc()
	TemplateRenderDuration.Observe(duration.Seconds())
	if unresolved > 0 {
		UnresolvedDirectivesTotal.Add(float64(unresolved))
	}
}

// RecordSuspicious records a flagged value and whether it was rejected or only logged.
func RecordSuspicious(rejected bool) {
	action := "warned"
	if rejected {
		action = "rejected"
	}
	SuspiciousValuesTotal.WithLabelValues(action).Inc()
}

// RecordFunnelCompile records one funnel compilation. steps is ignored for failures.
func RecordFunnelCompile(mode, outcome string, steps int) {
	FunnelCompilesTotal.WithLabelValues(mode, outcome).Inc()
	if outcome == "ok" {
		FunnelSteps.WithLabelValues(mode).Observe(float64(steps))
	}
}

// RecordMCPCall records one MCP call. outcome is one of ok, tool_error, rpc_error.
func RecordMCPCall(method, tool, outcome string) {
	MCPCallsTotal.WithLabelValues(method, tool, outcome).Inc()
}
