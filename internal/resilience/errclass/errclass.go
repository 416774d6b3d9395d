// Package errclass classifies dependency errors into a closed taxonomy with
// a retryable flag and severity. The classification drives retry decisions,
// fallback selection, and the structured errors returned to callers.
package errclass

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"mediacast/internal/resilience/breaker"
	"mediacast/internal/resilience/timeout"
)

// Class identifies the category of a dependency error.
type Class int

const (
	// ClassUnknown is the default for errors that match no other class.
	ClassUnknown Class = iota
	// ClassNetwork covers transport-level failures (connection refused,
	// reset, unreachable).
	ClassNetwork
	// ClassTimeout covers deadline expiries.
	ClassTimeout
	// ClassAuthentication covers missing or invalid credentials (401).
	ClassAuthentication
	// ClassAuthorization covers insufficient permissions (403).
	ClassAuthorization
	// ClassRateLimit covers provider throttling (429).
	ClassRateLimit
	// ClassServiceUnavailable covers 5xx responses and explicit
	// unavailability signals.
	ClassServiceUnavailable
	// ClassValidation covers rejected input (400, 422).
	ClassValidation
	// ClassConfiguration covers missing required settings or credentials.
	ClassConfiguration
	// ClassCircuitOpen is the synthetic fast-fail raised by a circuit
	// breaker. It is never retried by the breaker that raised it.
	ClassCircuitOpen
)

// String returns a string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassNetwork:
		return "network"
	case ClassTimeout:
		return "timeout"
	case ClassAuthentication:
		return "authentication"
	case ClassAuthorization:
		return "authorization"
	case ClassRateLimit:
		return "rate_limit"
	case ClassServiceUnavailable:
		return "service_unavailable"
	case ClassValidation:
		return "validation"
	case ClassConfiguration:
		return "configuration"
	case ClassCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Severity ranks how serious a classified error is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns a string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Classification is the result of classifying an error.
type Classification struct {
	Class     Class
	Severity  Severity
	Retryable bool
}

// HTTPError represents an HTTP response treated as an error, carrying the
// status code for classification.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ConfigurationError indicates required settings or credentials are absent.
type ConfigurationError struct {
	Dependency string
	Missing    []string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is missing required configuration: %s", e.Dependency, strings.Join(e.Missing, ", "))
}

// Classify maps an error to its class, severity, and retryable flag.
//
// Unmatched errors default to ClassUnknown, medium severity, non-retryable.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	// Breaker fast-fail. Not retryable against the breaker that raised
	// it: the error itself is the retry-suppression signal.
	var openErr *breaker.OpenError
	if errors.As(err, &openErr) {
		return Classification{Class: ClassCircuitOpen, Severity: SeverityHigh, Retryable: false}
	}

	var toErr *timeout.Error
	if errors.As(err, &toErr) {
		return Classification{Class: ClassTimeout, Severity: SeverityHigh, Retryable: true}
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return Classification{Class: ClassConfiguration, Severity: SeverityCritical, Retryable: false}
	}

	// Context errors from the caller's own cancellation are not retryable.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Classification{Class: ClassTimeout, Severity: SeverityMedium, Retryable: false}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Classification{Class: ClassTimeout, Severity: SeverityHigh, Retryable: true}
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return Classification{Class: ClassNetwork, Severity: SeverityHigh, Retryable: true}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Classification{Class: ClassNetwork, Severity: SeverityHigh, Retryable: true}
	}

	return Classification{Class: ClassUnknown, Severity: SeverityMedium, Retryable: false}
}

// classifyStatus maps an HTTP status code to a classification.
func classifyStatus(code int) Classification {
	switch {
	case code == http.StatusUnauthorized:
		return Classification{Class: ClassAuthentication, Severity: SeverityHigh, Retryable: false}
	case code == http.StatusForbidden:
		return Classification{Class: ClassAuthorization, Severity: SeverityMedium, Retryable: false}
	case code == http.StatusTooManyRequests:
		return Classification{Class: ClassRateLimit, Severity: SeverityMedium, Retryable: true}
	case code == http.StatusRequestTimeout:
		return Classification{Class: ClassTimeout, Severity: SeverityHigh, Retryable: true}
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return Classification{Class: ClassValidation, Severity: SeverityLow, Retryable: false}
	case code >= 500 && code < 600:
		return Classification{Class: ClassServiceUnavailable, Severity: SeverityHigh, Retryable: true}
	default:
		return Classification{Class: ClassUnknown, Severity: SeverityMedium, Retryable: false}
	}
}

// Error is the structured error ultimately delivered to callers when a
// dependency call fails past every resilience layer. It is suitable for
// mapping to a protocol-level response by the caller.
type Error struct {
	Class      Class
	Severity   Severity
	Dependency string
	Message    string
	Retryable  bool
	Context    map[string]any

	cause error
}

// Wrap builds a structured Error from a terminal failure against the named
// dependency, classifying the cause.
func Wrap(dependency string, cause error) *Error {
	cls := Classify(cause)
	return &Error{
		Class:      cls.Class,
		Severity:   cls.Severity,
		Dependency: dependency,
		Message:    cause.Error(),
		Retryable:  cls.Retryable,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %s", e.Dependency, e.Class, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}
