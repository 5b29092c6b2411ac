// Package metrics provides Prometheus-based metrics recording for the
// chat loop, tool dispatch, cache, and HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface the chat service and HTTP layer record to.
type Recorder interface {
	ObserveLLMRequest(provider, model string, promptTokens, completionTokens int64, success bool, errorType string, duration time.Duration)
	IncToolCall(tool string, isError bool)
	IncCache(family string, hit bool)
	ObserveHTTPRequest(route, method, code string, duration time.Duration)
}

// PrometheusRecorder implements Recorder using Prometheus metrics registered
// on the default registry.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toolCallsTotal  *prometheus.CounterVec
	cacheTotal      *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new Prometheus-based metrics recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status", "error_type"},
		),
		tokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"provider", "model", "type"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),
		toolCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_tool_calls_total",
				Help: "Total number of tool dispatches by tool and outcome",
			},
			[]string{"tool", "status"},
		),
		cacheTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_requests_total",
				Help: "Cache lookups by key family and outcome",
			},
			[]string{"family", "outcome"},
		),
		httpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "code"},
		),
	}
}

// ObserveLLMRequest records metrics for one completed provider call.
func (p *PrometheusRecorder) ObserveLLMRequest(provider, model string, promptTokens, completionTokens int64, success bool, errorType string, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}

	p.requestsTotal.WithLabelValues(provider, model, status, errorType).Inc()

	if success {
		p.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}

	p.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// IncToolCall increments the tool dispatch counter.
func (p *PrometheusRecorder) IncToolCall(tool string, isError bool) {
	status := "success"
	if isError {
		status = "error"
	}
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// IncCache records one cache lookup outcome.
func (p *PrometheusRecorder) IncCache(family string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	p.cacheTotal.WithLabelValues(family, outcome).Inc()
}

// ObserveHTTPRequest records duration for one HTTP request.
func (p *PrometheusRecorder) ObserveHTTPRequest(route, method, code string, duration time.Duration) {
	p.httpDuration.WithLabelValues(route, method, code).Observe(duration.Seconds())
}

// NopRecorder discards all observations. Useful in tests and when metrics
// are disabled.
type NopRecorder struct{}

// ObserveLLMRequest implements Recorder.
func (NopRecorder) ObserveLLMRequest(string, string, int64, int64, bool, string, time.Duration) {}

// IncToolCall implements Recorder.
func (NopRecorder) IncToolCall(string, bool) {}

// IncCache implements Recorder.
func (NopRecorder) IncCache(string, bool) {}

// ObserveHTTPRequest implements Recorder.
func (NopRecorder) ObserveHTTPRequest(string, string, string, time.Duration) {}
