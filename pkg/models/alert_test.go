package models

import (
	"testing"
	"time"
)

func TestNewAlertCopiesMetadata(t *testing.T) {
	ev := &Event{
		UserID:    "u1",
		SessionID: "s1",
		EventType: EventInactivity,
		Timestamp: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		Metadata:  map[string]interface{}{"duration": float64(45)},
	}

	al := NewAlert(ev, SeverityMedium, "user inactive")
	if al.Metadata["duration"] != float64(45) {
		t.Fatalf("alert must carry the triggering metadata, got %+v", al.Metadata)
	}

	al.Metadata["duration"] = float64(99)
	if ev.Metadata["duration"] != float64(45) {
		t.Fatalf("mutating alert metadata leaked into the event: %+v", ev.Metadata)
	}

	ev.Metadata["extra"] = "late"
	if _, ok := al.Metadata["extra"]; ok {
		t.Fatalf("mutating event metadata leaked into the alert: %+v", al.Metadata)
	}
}

func TestNewAlertEmptyMetadataStaysNil(t *testing.T) {
	ev := &Event{
		UserID:    "u1",
		SessionID: "s1",
		EventType: EventHeartbeat,
		Timestamp: time.Now().UTC(),
	}
	al := NewAlert(ev, SeverityLow, "stale heartbeat")
	if al.Metadata != nil {
		t.Fatalf("expected nil metadata, got %+v", al.Metadata)
	}
	if al.AlertID == "" {
		t.Fatalf("alert id must be set")
	}
}
