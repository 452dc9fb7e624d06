// Package channel implements the individual notification transports a
// dispatched alert can fan out to: email and three chat-webhook payload
// styles.
package channel

import (
	"context"
	"time"
)

// Notification is the channel-agnostic payload a Channel renders.
type Notification struct {
	AlertID     string
	MonitorName string
	RuleTitle   string
	Severity    string
	Message     string
	// Condition is the human-readable "<aggregation>(<field>) <op> <value>"
	// string every rendering carries.
	Condition string
	// TriggeredAt is the alert's creation time; every channel renders it
	// in UTC.
	TriggeredAt time.Time
	// LatestValue is the newest sample's value for the condition's field,
	// extracted from data.trigger_data[0].
	LatestValue    float64
	HasLatestValue bool
	Data           map[string]interface{}
}

// Channel delivers one Notification. Name identifies it in an alert's
// delivered_channels accounting.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// SeverityColor maps a severity to the hex color chat/email renderings use
// to make the alert's urgency visually obvious at a glance.
func SeverityColor(severity string) string {
	switch severity {
	case "low":
		return "#28a745"
	case "medium":
		return "#ffc107"
	case "high":
		return "#fd7e14"
	case "critical":
		return "#dc3545"
	default:
		return "#666666"
	}
}
