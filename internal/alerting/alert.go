// Package alerting implements rule-based alerting over historical
// per-operation records: a mutable rule set, time-windowed aggregation,
// per-rule cooldown, and multi-channel notification dispatch.
//
// Two independent alert streams exist in this system and are deliberately
// not deduplicated: the health monitor raises threshold alerts directly
// (Source = SourceMonitor) while the engine raises rule-based alerts on its
// own schedule (Source = SourceRule). Both can alert on overlapping metrics
// such as error rate; neither stream is authoritative.
package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Source identifies which alerting path created an alert.
type Source string

const (
	// SourceMonitor marks threshold alerts raised directly by the health
	// monitor. These auto-resolve when the triggering metric recovers.
	SourceMonitor Source = "monitor"

	// SourceRule marks alerts raised by the rule engine. These resolve
	// manually.
	SourceRule Source = "rule"
)

// DeliveryStatus is the per-channel outcome of dispatching an alert.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery records one channel's dispatch outcome. Channel failures are
// independent; one failing channel never blocks the others.
type Delivery struct {
	Channel string
	Status  DeliveryStatus
	Error   string
	At      time.Time
}

// Alert is a single raised alert with its delivery records.
type Alert struct {
	ID         string
	Source     Source
	RuleID     string
	RuleName   string
	Dependency string
	Severity   Severity
	Message    string
	Timestamp  time.Time
	Resolved   bool
	ResolvedAt *time.Time
	Deliveries []Delivery
}

// NewAlert builds an alert with a fresh ID.
func NewAlert(source Source, dependency string, severity Severity, message string, at time.Time) Alert {
	return Alert{
		ID:         uuid.New().String(),
		Source:     source,
		Dependency: dependency,
		Severity:   severity,
		Message:    message,
		Timestamp:  at,
	}
}

// Sink delivers alerts to a notification channel (console, webhook,
// Telegram). Implementations must be safe for concurrent use.
type Sink interface {
	// Name returns the channel name rules refer to (lowercase).
	Name() string

	// Send delivers the alert, returning a non-nil error on failure.
	Send(ctx context.Context, alert Alert) error
}
