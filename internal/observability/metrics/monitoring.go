package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Monitoring metrics track health monitor and alert engine behavior.
var (
	// DependencyHealth reports the derived health status per dependency.
	// Values: 0=unknown, 1=healthy, 2=degraded, 3=unhealthy
	DependencyHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "monitor_dependency_health",
			Help: "Derived health status per dependency (0=unknown, 1=healthy, 2=degraded, 3=unhealthy)",
		},
		[]string{"dependency"},
	)

	// MonitorTickDuration measures the duration of a full health monitor pass.
	MonitorTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monitor_tick_duration_seconds",
			Help:    "Duration of a full health monitor pass in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// SamplesPrunedTotal counts metric samples removed by retention pruning.
	SamplesPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_samples_pruned_total",
			Help: "Total number of metric samples removed by retention pruning",
		},
	)

	// AlertsFiredTotal counts alerts created by source and severity.
	AlertsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_alerts_fired_total",
			Help: "Total number of alerts created, by source (monitor/rule) and severity",
		},
		[]string{"source", "severity"},
	)

	// NotificationDeliveriesTotal counts notification deliveries by channel and status.
	NotificationDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_notification_deliveries_total",
			Help: "Total number of notification deliveries, by channel and status (sent/failed)",
		},
		[]string{"channel", "status"},
	)
)
