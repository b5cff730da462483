package domain

// Status is the classified health of a monitored service.
type Status string

const (
	StatusOperational Status = "operational"
	StatusDegraded    Status = "degraded"
	StatusDown        Status = "down"
)

// Severity orders statuses for display, higher is worse.
func (s Status) Severity() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusOperational, StatusDegraded, StatusDown:
		return true
	}
	return false
}

// AlertSeverity classifies an alert event for channel routing.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)
