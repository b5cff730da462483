package domain

import "time"

// ServiceState is the live classification of one service. There is exactly
// one per monitored service; only the status engine mutates it, everyone
// else reads copies.
type ServiceState struct {
	Service             string       `json:"service"`
	Status              Status       `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastMeasurement     *Measurement `json:"last_measurement,omitempty"`
	LastTransition      time.Time    `json:"last_transition,omitempty"`
}

// Transition records a status change detected by the engine.
type Transition struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// AlertEvent is emitted once per status transition and handed to the alert
// channels. It is never stored.
type AlertEvent struct {
	ID          int64       `json:"id,string"`
	Service     string      `json:"service"`
	From        Status      `json:"from"`
	To          Status      `json:"to"`
	Timestamp   time.Time   `json:"timestamp"`
	Measurement Measurement `json:"measurement"`
}

// Severity maps the transition target to an alert level: going down is
// critical, degrading is a warning, recovering is informational.
func (e AlertEvent) Severity() AlertSeverity {
	switch e.To {
	case StatusDown:
		return SeverityCritical
	case StatusDegraded:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
