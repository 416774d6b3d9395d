package notifier

import (
	"context"

	"mediacast/internal/alerting"
)

// NoOpSink discards every alert. It stands in for a disabled channel so
// rules referencing that channel still resolve to a sink.
type NoOpSink struct {
	name string
}

// NewNoOpSink creates a NoOpSink answering to the given channel name.
func NewNoOpSink(name string) *NoOpSink {
	return &NoOpSink{name: name}
}

// Name implements alerting.Sink.
func (n *NoOpSink) Name() string { return n.name }

// Send does nothing and returns nil immediately.
func (n *NoOpSink) Send(_ context.Context, _ alerting.Alert) error {
	return nil
}
