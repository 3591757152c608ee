package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warrantix_runs_total",
		Help: "Total number of analysis runs",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "warrantix_run_duration_seconds",
		Help:    "End-to-end run duration in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// Analyzer metrics
	analyzerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warrantix_analyzer_runs_total",
		Help: "Total number of analyzer executions",
	}, []string{"analyzer", "status"})

	analyzerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warrantix_analyzer_duration_seconds",
		Help:    "Analyzer execution duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"analyzer"})

	// Tool client metrics
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warrantix_tool_calls_total",
		Help: "Total number of tool invocations reaching the transport",
	}, []string{"tool", "status"})

	toolRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warrantix_tool_retries_total",
		Help: "Total number of retried tool attempts",
	}, []string{"tool"})

	cacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warrantix_tool_cache_events_total",
		Help: "Tool cache lookups by outcome",
	}, []string{"event"}) // event: "hit", "miss", "expired"
)

func RecordRun(success bool, duration time.Duration) {
	runsTotal.WithLabelValues(statusLabel(success)).Inc()
	runDuration.Observe(duration.Seconds())
}

func RecordAnalyzer(name string, success bool, duration time.Duration) {
	analyzerRuns.WithLabelValues(name, statusLabel(success)).Inc()
	analyzerDuration.WithLabelValues(name).Observe(duration.Seconds())
}

func RecordToolCall(tool string, success bool) {
	toolCalls.WithLabelValues(tool, statusLabel(success)).Inc()
}

func RecordToolRetry(tool string) {
	toolRetries.WithLabelValues(tool).Inc()
}

func RecordCacheEvent(event string) {
	cacheEvents.WithLabelValues(event).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
