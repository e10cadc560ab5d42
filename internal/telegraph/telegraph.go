// Package telegraph bridges engine alerts to operator chat platforms
// (Slack, Discord). Outbound only: the engine announces operational events,
// it takes no chat commands.
package telegraph

import (
	"context"
	"errors"
)

// Event kinds emitted by the engine.
const (
	KindRetryExhausted   = "retry-exhausted"
	KindStoreUnreachable = "store-unreachable"
	KindHeartbeatFailing = "heartbeat-failing"
)

// Event is one operator alert.
type Event struct {
	Kind     string // one of the Kind constants
	Title    string
	Detail   string
	Severity string // "info", "warning", "error"
}

// Notifier delivers events to a platform.
type Notifier interface {
	// Notify delivers one event. Implementations must be safe for
	// concurrent use.
	Notify(ctx context.Context, ev Event) error

	// Close releases platform resources.
	Close() error
}

// severityColor maps a severity to a sidebar color hint.
func severityColor(severity string) string {
	switch severity {
	case "error":
		return "#d00000"
	case "warning":
		return "#e8a317"
	default:
		return "#36a64f"
	}
}

// Multi fans one event out to several notifiers.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a Multi over the given notifiers. Nil entries are skipped.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Enabled reports whether any notifier is configured.
func (m *Multi) Enabled() bool { return len(m.notifiers) > 0 }

// Notify delivers ev to every notifier, collecting errors.
func (m *Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier.
func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
