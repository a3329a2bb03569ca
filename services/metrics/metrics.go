package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook
	WebhookUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edutrack_webhook_updates_total",
			Help: "Inbound provider updates by classified intent",
		},
		[]string{"intent"},
	)

	RegistrationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edutrack_registration_outcomes_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Dispatch
	NotificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edutrack_notification_outcomes_total",
			Help: "Notification recipients by outcome",
		},
		[]string{"outcome"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edutrack_dispatch_duration_seconds",
			Help:    "Duration of dispatch calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Provider
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edutrack_provider_requests_total",
			Help: "Requests to the messaging provider by method and result",
		},
		[]string{"method", "result"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edutrack_provider_request_duration_seconds",
			Help:    "Duration of requests to the messaging provider in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edutrack_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edutrack_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
