package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records sign-in attempts by result (success|invalid_credentials|unverified|error).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authflow_auth_attempts_total",
			Help: "Total number of sign-in attempts",
		},
		[]string{"result"},
	)

	// Registrations counts sign-up outcomes (success|conflict|error).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authflow_registrations_total",
			Help: "Total number of account registrations",
		},
		[]string{"result"},
	)

	// Activations counts activation link visits by result (activated|already_activated|not_found).
	Activations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authflow_activations_total",
			Help: "Total number of account activation attempts",
		},
		[]string{"result"},
	)

	// PasswordResets counts reset requests and completions by stage (request|complete) and result.
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authflow_password_resets_total",
			Help: "Total number of password reset operations",
		},
		[]string{"stage", "result"},
	)

	// MailDeliveries counts outbound notification attempts per template (success|failure).
	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authflow_mail_deliveries_total",
			Help: "Total number of transactional emails dispatched",
		},
		[]string{"template", "result"},
	)

	// RateLimited counts requests rejected by the per-client rate limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authflow_rate_limited_total",
			Help: "Total number of requests rejected by rate limiting",
		},
		[]string{"route"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authflow_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
