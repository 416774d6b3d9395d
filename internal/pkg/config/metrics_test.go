package config

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// Each test registers under its own prefix: promauto uses the default
// registry and duplicate names panic.

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	m := NewMetrics("cfgtest_register")

	assert.NotNil(t, m.LoadTimestamp)
	assert.NotNil(t, m.ValidationErrorsTotal)
	assert.NotNil(t, m.FallbacksTotal)
	assert.NotNil(t, m.FallbackActive)
	assert.Equal(t, "cfgtest_register", m.process)
}

func TestMetricsRecordLoadTimestamp(t *testing.T) {
	m := NewMetrics("cfgtest_timestamp")

	assert.Zero(t, testutil.ToFloat64(m.LoadTimestamp))
	m.RecordLoadTimestamp()
	assert.Greater(t, testutil.ToFloat64(m.LoadTimestamp), float64(0))
}

func TestMetricsCountersByField(t *testing.T) {
	m := NewMetrics("cfgtest_counters")

	m.RecordValidationError("prune_schedule")
	m.RecordFallback("prune_schedule")
	m.RecordFallback("prune_schedule")
	m.RecordFallback("timezone")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ValidationErrorsTotal.WithLabelValues("prune_schedule")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("prune_schedule")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("timezone")))
	assert.Zero(t, testutil.ToFloat64(m.ValidationErrorsTotal.WithLabelValues("timezone")))
}

func TestMetricsFallbackActiveGauge(t *testing.T) {
	m := NewMetrics("cfgtest_gauge")

	assert.Zero(t, testutil.ToFloat64(m.FallbackActive))
	m.SetFallbackActive(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbackActive))
	m.SetFallbackActive(false)
	assert.Zero(t, testutil.ToFloat64(m.FallbackActive))
}
