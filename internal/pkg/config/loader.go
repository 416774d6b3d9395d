package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadResult is what the Load* helpers return: the effective value, any
// warnings produced while loading it, and whether the default had to be
// used because the environment value failed to parse or validate.
//
// Loading never fails the process. A bad value falls back to the default
// and the caller decides what to do with the warnings, typically log them
// and bump the fallback metrics:
//
//	result := LoadEnvDuration("MONITOR_INTERVAL", 30*time.Second, ValidatePositiveDuration)
//	interval := result.Value.(time.Duration)
type LoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString reads a string from the environment, returning the default
// when the variable is unset or empty. No validation; use
// LoadEnvWithFallback when the value has a shape to check.
//
//	rulesPath := LoadEnvString("ALERT_RULES_PATH", "")
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// fallbackFor builds the LoadResult for a value that failed to parse or
// validate. All loaders share the one warning format so operators can grep
// for it.
func fallbackFor(envKey, raw string, cause error, defaultValue interface{}) LoadResult {
	return LoadResult{
		Value:           defaultValue,
		Warnings:        []string{fmt.Sprintf("invalid %s=%q: %v, using default %v", envKey, raw, cause, defaultValue)},
		FallbackApplied: true,
	}
}

// LoadEnvWithFallback reads a string from the environment and runs it
// through the validator. An unset variable silently takes the default; a
// set-but-invalid one takes the default with a warning.
//
//	result := LoadEnvWithFallback("PRUNE_SCHEDULE", "0 * * * *", ValidateCronSchedule)
//	schedule := result.Value.(string)
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) LoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return LoadResult{Value: defaultValue}
	}
	if validator != nil {
		if err := validator(value); err != nil {
			return fallbackFor(envKey, value, err, defaultValue)
		}
	}
	return LoadResult{Value: value}
}

// LoadEnvDuration reads a Go duration string ("30s", "5m", "1h30m") from
// the environment, parses it, and validates the result. Parse and
// validation failures both fall back with a warning.
//
//	result := LoadEnvDuration("SAMPLE_RETENTION", 24*time.Hour, ValidatePositiveDuration)
//	retention := result.Value.(time.Duration)
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) LoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return LoadResult{Value: defaultValue}
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallbackFor(envKey, raw, err, defaultValue)
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackFor(envKey, raw, err, defaultValue)
		}
	}
	return LoadResult{Value: parsed}
}

// LoadEnvInt reads an integer from the environment with the same
// parse-validate-fallback behavior as LoadEnvDuration.
//
//	result := LoadEnvInt("OPS_PORT", 9091, func(v int) error {
//		return ValidateIntRange(v, 1, 65535)
//	})
//	port := result.Value.(int)
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) LoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return LoadResult{Value: defaultValue}
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallbackFor(envKey, raw, fmt.Errorf("not an integer"), defaultValue)
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackFor(envKey, raw, err, defaultValue)
		}
	}
	return LoadResult{Value: parsed}
}

// LoadEnvBool reads a boolean from the environment. Accepted spellings are
// the strconv.ParseBool set ("1", "t", "T", "true", "TRUE", "True" and the
// false equivalents); anything else falls back with a warning.
func LoadEnvBool(envKey string, defaultValue bool) LoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return LoadResult{Value: defaultValue}
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallbackFor(envKey, raw, fmt.Errorf("not a boolean"), defaultValue)
	}
	return LoadResult{Value: parsed}
}
