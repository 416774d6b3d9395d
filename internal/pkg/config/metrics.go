package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the per-process set of configuration gauges and counters:
//
//	{process}_config_load_timestamp          last load, unix seconds
//	{process}_config_validation_errors_total validation failures by field
//	{process}_config_fallbacks_total         defaults applied by field
//	{process}_config_fallback_active         1 while any fallback is in effect
//
// A process creates one instance at startup and feeds it from the
// LoadResult of each setting, so a dashboard can tell a clean boot from
// one running on defaults.
type Metrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackActive        prometheus.Gauge

	process string
}

// NewMetrics registers the configuration metric set under the given
// process name prefix. Names must be unique per process; a duplicate
// prefix panics at registration, same as any promauto collector.
func NewMetrics(process string) *Metrics {
	return &Metrics{
		LoadTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", process),
			Help: fmt.Sprintf("Unix timestamp of the last %s configuration load", process),
		}),
		ValidationErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_validation_errors_total", process),
			Help: fmt.Sprintf("Configuration validation errors in %s by field", process),
		}, []string{"field"}),
		FallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", process),
			Help: fmt.Sprintf("Configuration defaults applied in %s by field", process),
		}, []string{"field"}),
		FallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_fallback_active", process),
			Help: fmt.Sprintf("1 if any %s configuration fallback is active, 0 otherwise", process),
		}),
		process: process,
	}
}

// RecordLoadTimestamp stamps the load gauge with the current time. Called
// once per (re)load.
func (m *Metrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a validation failure for a field.
func (m *Metrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback counts a default being applied for a field.
func (m *Metrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// SetFallbackActive raises or clears the fallback gauge.
func (m *Metrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}
