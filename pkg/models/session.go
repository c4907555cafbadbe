package models

import "time"

// SessionStatus is the lifecycle state of a session row. Ended rows
// stay in the table until the reaper removes them.
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusEnded  SessionStatus = "ended"
)

// Session is the tracked state for one monitoring period.
type Session struct {
	SessionID      string        `json:"session_id"`
	UserID         string        `json:"user_id"`
	StartTime      time.Time     `json:"start_time"`
	LastHeartbeat  time.Time     `json:"last_heartbeat"`
	Status         SessionStatus `json:"status"`
	RiskScore      float64       `json:"risk_score"`
	EventCount     int64         `json:"event_count"`
	TabSwitchTimes []time.Time   `json:"tab_switch_times,omitempty"`
}

// Clone returns a deep copy safe to hand out of the session table.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if len(s.TabSwitchTimes) > 0 {
		cp.TabSwitchTimes = make([]time.Time, len(s.TabSwitchTimes))
		copy(cp.TabSwitchTimes, s.TabSwitchTimes)
	}
	return &cp
}

// SessionSummary is one admin listing row.
type SessionSummary struct {
	SessionID     string        `json:"session_id"`
	UserID        string        `json:"user_id"`
	Status        SessionStatus `json:"status"`
	StartTime     time.Time     `json:"start_time"`
	LastHeartbeat time.Time     `json:"last_heartbeat"`
	RiskScore     float64       `json:"risk_score"`
	AlertCount    int           `json:"alert_count"`
}
