// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resilience metrics track circuit breaker, retry, timeout, and fallback behavior.
var (
	// BreakerState reports the current circuit breaker state per dependency.
	// Values: 0=closed, 1=open, 2=half-open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resilience_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"dependency"},
	)

	// BreakerTransitionsTotal counts circuit breaker state transitions.
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"dependency", "from", "to"},
	)

	// BreakerRejectionsTotal counts calls rejected while the circuit was open.
	BreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_breaker_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"dependency"},
	)

	// RetryAttemptsTotal counts retry attempts by final outcome.
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_retry_attempts_total",
			Help: "Total number of retry attempts by outcome (retried/exhausted/aborted)",
		},
		[]string{"outcome"},
	)

	// TimeoutsTotal counts operations that exceeded their deadline.
	TimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_timeouts_total",
			Help: "Total number of operations that exceeded their deadline",
		},
		[]string{"dependency"},
	)

	// FallbacksTotal counts fallback strategy executions.
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_fallbacks_total",
			Help: "Total number of fallback strategy executions",
		},
		[]string{"dependency", "strategy"},
	)
)
