package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how serious an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is a flagged security concern for one event/session. Alerts
// are write-once here; resolution is owned by downstream tooling.
type Alert struct {
	AlertID     string                 `json:"alert_id"`
	UserID      string                 `json:"user_id"`
	SessionID   string                 `json:"session_id"`
	Severity    Severity               `json:"severity"`
	EventType   EventType              `json:"event_type"`
	Description string                 `json:"description"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Resolved    bool                   `json:"resolved"`
}

// NewAlert builds an alert for the triggering event. The event's
// metadata is copied, not aliased; mutating one side never shows up on
// the other.
func NewAlert(event *Event, severity Severity, description string) *Alert {
	var meta map[string]interface{}
	if len(event.Metadata) > 0 {
		meta = make(map[string]interface{}, len(event.Metadata))
		for k, v := range event.Metadata {
			meta[k] = v
		}
	}
	return &Alert{
		AlertID:     uuid.NewString(),
		UserID:      event.UserID,
		SessionID:   event.SessionID,
		Severity:    severity,
		EventType:   event.EventType,
		Description: description,
		Timestamp:   event.Timestamp,
		Metadata:    meta,
	}
}
