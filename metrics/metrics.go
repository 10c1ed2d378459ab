// Package metrics provides Prometheus instrumentation for the gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haowjy/tandem-llm-go"
)

var (
	// RequestsTotal counts chat requests by mode and terminal status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_requests_total",
			Help: "Total number of chat requests by mode and status.",
		},
		[]string{"mode", "status"}, // mode: "aggregate" or "stream"
	)

	// RequestDuration tracks end-to-end chat request duration in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tandem_request_duration_seconds",
			Help:    "End-to-end chat request duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	// UpstreamErrorsTotal counts upstream provider failures, fatal and
	// recoverable alike.
	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_upstream_errors_total",
			Help: "Total number of upstream provider errors by kind.",
		},
		[]string{"provider", "kind"},
	)

	// TokensTotal counts tokens consumed per provider and pipeline phase.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_tokens_total",
			Help: "Total number of tokens by provider, phase and kind.",
		},
		[]string{"provider", "phase", "kind"}, // kind: "prompt", "completion" or "reasoning"
	)

	// EstimatedCostTotal sums the estimated upstream spend in USD.
	EstimatedCostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_estimated_cost_usd_total",
			Help: "Estimated upstream spend in USD by provider and model.",
		},
		[]string{"provider", "model"},
	)
)

// RecordRequest records one finished chat request.
func RecordRequest(mode, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(mode, status).Inc()
	RequestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordUpstreamError records one upstream provider failure.
func RecordUpstreamError(provider, kind string) {
	UpstreamErrorsTotal.WithLabelValues(provider, kind).Inc()
}

// RecordTokens records a phase usage summary.
func RecordTokens(provider, phase string, u tandem.Usage) {
	if u.PromptTokens > 0 {
		TokensTotal.WithLabelValues(provider, phase, "prompt").Add(float64(u.PromptTokens))
	}
	if u.CompletionTokens > 0 {
		TokensTotal.WithLabelValues(provider, phase, "completion").Add(float64(u.CompletionTokens))
	}
	if u.ReasoningTokens > 0 {
		TokensTotal.WithLabelValues(provider, phase, "reasoning").Add(float64(u.ReasoningTokens))
	}
}

// RecordCost records an estimated spend increment.
func RecordCost(provider, model string, usd float64) {
	EstimatedCostTotal.WithLabelValues(provider, model).Add(usd)
}
