package metrics

import (
	"time"

	"github.com/evalgate/evalgate/internal/observability"
)

// Gateway-level metrics following Prometheus conventions
var (
	// Completion pipeline metrics
	CompletionsTotal    = "gateway_completions_total"
	CompletionFallbacks = "gateway_completion_fallbacks_total"
	CompletionDuration  = "gateway_completion_duration_ms"
	CompletionAttempts  = "gateway_completion_attempts"

	// Rate limiting metrics
	RateLimitWaits = "gateway_rate_limit_wait_ms"

	// Connection metrics
	ActiveConnections = "app_active_connections"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordCompletion records one completion request with its resolved contract
// and outcome.
func RecordCompletion(provider, contract string, fallback bool, attempts int, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "success"
	if fallback {
		status = "fallback"
	}
	labels := map[string]string{
		"provider": provider,
		"contract": contract,
		"status":   status,
	}

	_ = observability.TelemetrySystem.Counter(CompletionsTotal, 1, labels)
	if fallback {
		_ = observability.TelemetrySystem.Counter(CompletionFallbacks, 1, labels)
	}
	_ = observability.TelemetrySystem.Histogram(CompletionDuration, duration, labels)
	_ = observability.TelemetrySystem.Gauge(CompletionAttempts, float64(attempts), labels)
}

// RecordRateLimitWait records time spent waiting for rate budget.
func RecordRateLimitWait(provider string, wait time.Duration) {
	if observability.TelemetrySystem == nil || wait <= 0 {
		return
	}
	_ = observability.TelemetrySystem.Histogram(
		RateLimitWaits,
		wait,
		map[string]string{"provider": provider},
	)
}

// SetActiveConnections sets the current number of active connections
func SetActiveConnections(count int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ActiveConnections,
			float64(count),
			nil,
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
