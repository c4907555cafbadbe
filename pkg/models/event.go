package models

import (
	"time"
)

// EventType is a client-reported behavioral event kind.
type EventType string

const (
	EventSessionStart     EventType = "session_start"
	EventSessionEnd       EventType = "session_end"
	EventHeartbeat        EventType = "heartbeat"
	EventTabSwitch        EventType = "tab_switch"
	EventInactivity       EventType = "inactivity"
	EventScreenLock       EventType = "screen_lock"
	EventDeviceChange     EventType = "device_change"
	EventCopyPaste        EventType = "copy_paste"
	EventRightClick       EventType = "right_click"
	EventKeyboardShortcut EventType = "keyboard_shortcut"
)

var eventTypes = map[string]EventType{
	string(EventSessionStart):     EventSessionStart,
	string(EventSessionEnd):       EventSessionEnd,
	string(EventHeartbeat):        EventHeartbeat,
	string(EventTabSwitch):        EventTabSwitch,
	string(EventInactivity):       EventInactivity,
	string(EventScreenLock):       EventScreenLock,
	string(EventDeviceChange):     EventDeviceChange,
	string(EventCopyPaste):        EventCopyPaste,
	string(EventRightClick):       EventRightClick,
	string(EventKeyboardShortcut): EventKeyboardShortcut,
}

// ParseEventType maps a wire string onto the closed event-type enum.
func ParseEventType(raw string) (EventType, bool) {
	et, ok := eventTypes[raw]
	return et, ok
}

// RawEvent is the wire representation of an incoming event. Client
// timestamps are not part of the contract; the pipeline stamps events
// at ingestion.
type RawEvent struct {
	UserID            string                 `json:"user_id"`
	SessionID         string                 `json:"session_id"`
	EventType         string                 `json:"event_type"`
	Metadata          map[string]interface{} `json:"metadata"`
	DeviceFingerprint string                 `json:"device_fingerprint,omitempty"`
	IPAddress         string                 `json:"ip_address,omitempty"`
	UserAgent         string                 `json:"user_agent,omitempty"`
}

// Event is one validated, ingestion-stamped occurrence.
type Event struct {
	UserID            string                 `json:"user_id"`
	SessionID         string                 `json:"session_id"`
	EventType         EventType              `json:"event_type"`
	Timestamp         time.Time              `json:"timestamp"`
	Metadata          map[string]interface{} `json:"metadata"`
	DeviceFingerprint string                 `json:"device_fingerprint,omitempty"`
	IPAddress         string                 `json:"ip_address,omitempty"`
	UserAgent         string                 `json:"user_agent,omitempty"`
}

// MetaNumber returns a numeric metadata value, or def when the key is
// missing or not numeric. JSON-decoded numbers arrive as float64.
func (e *Event) MetaNumber(key string, def float64) float64 {
	if e == nil || e.Metadata == nil {
		return def
	}
	v, ok := e.Metadata[key]
	if !ok {
		return def
	}
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return def
	}
}
