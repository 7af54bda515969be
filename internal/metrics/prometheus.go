package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secure_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secure_api_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	rateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secure_api_ratelimit_decisions_total",
			Help: "Rate limit decisions by policy and outcome",
		},
		[]string{"policy", "outcome"},
	)

	storeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secure_api_store_fallback_total",
			Help: "Store operations served by the in-process fallback after a primary failure",
		},
		[]string{"operation"},
	)

	storeDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "secure_api_store_degraded",
			Help: "1 while rate limiting runs on the per-process fallback store",
		},
	)

	storeBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "secure_api_store_breaker_state",
			Help: "Distributed store circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	inputClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secure_api_input_classifications_total",
			Help: "Input risk classifications by risk level",
		},
		[]string{"risk_level", "valid"},
	)

	securityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secure_api_security_events_total",
			Help: "Security events recorded by type",
		},
		[]string{"type"},
	)

	securityEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secure_api_security_events_dropped_total",
			Help: "Security events dropped because the recorder queue was full",
		},
	)
)

func RecordHTTPRequest(method, route string, statusCode int, durationSeconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, statusClass(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// outcome is one of "allowed", "blocked", "already_blocked"
func RecordRateLimitDecision(policy, outcome string) {
	rateLimitDecisions.WithLabelValues(policy, outcome).Inc()
}

func RecordStoreFallback(operation string) {
	storeFallbacks.WithLabelValues(operation).Inc()
}

func SetStoreDegraded(degraded bool) {
	if degraded {
		storeDegraded.Set(1)
		return
	}
	storeDegraded.Set(0)
}

func SetStoreBreakerState(state float64) {
	storeBreakerState.Set(state)
}

func RecordInputClassification(riskLevel string, valid bool) {
	inputClassifications.WithLabelValues(riskLevel, strconv.FormatBool(valid)).Inc()
}

func RecordSecurityEvent(eventType string) {
	securityEvents.WithLabelValues(eventType).Inc()
}

func RecordSecurityEventDropped() {
	securityEventsDropped.Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusClass(statusCode int) string {
	switch {
	case statusCode >= 500:
		return "5xx"
	case statusCode >= 400:
		return "4xx"
	case statusCode >= 300:
		return "3xx"
	case statusCode >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
