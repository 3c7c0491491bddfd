// Package metrics provides Prometheus metrics for the integrations service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthChecksTotal tracks inbound credential checks by verifier and outcome
	AuthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "integrations",
			Subsystem: "auth",
			Name:      "checks_total",
			Help:      "Total number of inbound credential checks by verifier and outcome",
		},
		[]string{"verifier", "outcome"},
	)

	// UnauthenticatedRequestsTotal tracks requests served on routes that skip every check
	UnauthenticatedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "integrations",
			Subsystem: "auth",
			Name:      "unauthenticated_requests_total",
			Help:      "Total number of requests served without any credential check",
		},
		[]string{"route"},
	)

	// ConnectionTransitionsTotal tracks connection lifecycle transitions
	ConnectionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "integrations",
			Subsystem: "registry",
			Name:      "transitions_total",
			Help:      "Total number of connection status transitions",
		},
		[]string{"platform", "status"},
	)

	// GraphQLRequestsTotal tracks outbound GraphQL attempts
	GraphQLRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "integrations",
			Subsystem: "shopify",
			Name:      "graphql_requests_total",
			Help:      "Total number of outbound GraphQL attempts by operation type and result",
		},
		[]string{"operation", "result"},
	)

	// GraphQLRequestDuration tracks outbound GraphQL attempt duration
	GraphQLRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "integrations",
			Subsystem: "shopify",
			Name:      "graphql_request_duration_seconds",
			Help:      "Duration of outbound GraphQL attempts in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// RateLimitHits tracks throttled answers and local refusals
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "integrations",
			Subsystem: "ratelimit",
			Name:      "hits_total",
			Help:      "Total number of rate limit hits",
		},
		[]string{"platform", "kind"},
	)

	// RateLimitWaitTime tracks time spent pacing before requests
	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "integrations",
			Subsystem: "ratelimit",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for throttle budget in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"platform"},
	)

	// ThrottleAvailable tracks the last observed available points per platform
	ThrottleAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "integrations",
			Subsystem: "ratelimit",
			Name:      "available_points",
			Help:      "Last observed available throttle points",
		},
		[]string{"platform"},
	)

	// WebhooksReceived tracks inbound platform webhooks
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "integrations",
			Subsystem: "webhooks",
			Name:      "received_total",
			Help:      "Total number of inbound webhooks by topic and status",
		},
		[]string{"topic", "status"},
	)

	// EventSubscribers tracks active connection event subscribers
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "integrations",
			Subsystem: "events",
			Name:      "subscribers",
			Help:      "Number of active connection event subscribers",
		},
	)

	// RedisOperationDuration tracks Redis operation duration
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "integrations",
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)
)

// RecordAuthCheck records one verifier outcome
func RecordAuthCheck(verifier, outcome string) {
	AuthChecksTotal.WithLabelValues(verifier, outcome).Inc()
}

// RecordGraphQLRequest records an outbound GraphQL attempt
func RecordGraphQLRequest(operation, result string, durationSeconds float64) {
	GraphQLRequestsTotal.WithLabelValues(operation, result).Inc()
	GraphQLRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordRateLimitHit records a throttled answer or a local refusal
func RecordRateLimitHit(platform, kind string) {
	RateLimitHits.WithLabelValues(platform, kind).Inc()
}

// RecordRateLimitWait records time spent pacing
func RecordRateLimitWait(platform string, seconds float64) {
	RateLimitWaitTime.WithLabelValues(platform).Observe(seconds)
}
