package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"sessionwatch/pkg/models"
)

type fixedScorer struct {
	margin float64
	err    error
	calls  int
}

func (f *fixedScorer) Score(ctx context.Context, features []float64) (float64, error) {
	f.calls++
	return f.margin, f.err
}

func newSession(t0 time.Time) *models.Session {
	return &models.Session{
		SessionID:     "s1",
		UserID:        "u1",
		StartTime:     t0,
		LastHeartbeat: t0,
		Status:        models.StatusActive,
	}
}

func tabSwitchAt(ts time.Time) *models.Event {
	return &models.Event{
		UserID:    "u1",
		SessionID: "s1",
		EventType: models.EventTabSwitch,
		Timestamp: ts,
	}
}

// Feeds tab switches the way the pipeline does: append to the window,
// then analyze.
func submitTabSwitch(a *Analyzer, s *models.Session, ts time.Time) []*models.Alert {
	s.TabSwitchTimes = append(s.TabSwitchTimes, ts)
	s.EventCount++
	s.LastHeartbeat = ts // keep the heartbeat rule quiet
	return a.Analyze(context.Background(), tabSwitchAt(ts), s)
}

func TestTabSwitchBurstFiresOnFourthInWindow(t *testing.T) {
	a := New(Config{}, nil, nil)
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t0)

	for _, offset := range []time.Duration{0, 5 * time.Second, 10 * time.Second} {
		if alerts := submitTabSwitch(a, s, t0.Add(offset)); len(alerts) != 0 {
			t.Fatalf("no alert expected at +%s, got %d", offset, len(alerts))
		}
	}

	alerts := submitTabSwitch(a, s, t0.Add(15*time.Second))
	if len(alerts) != 1 {
		t.Fatalf("expected exactly 1 alert on 4th switch, got %d", len(alerts))
	}
	if alerts[0].Severity != models.SeverityHigh {
		t.Fatalf("expected high severity, got %s", alerts[0].Severity)
	}
}

func TestTabSwitchWindowSlidesInsteadOfAccumulating(t *testing.T) {
	a := New(Config{}, nil, nil)
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t0)

	for _, offset := range []time.Duration{0, 5 * time.Second, 10 * time.Second} {
		submitTabSwitch(a, s, t0.Add(offset))
	}

	// 4th switch at t=100s: the first three are outside the 60s window.
	alerts := submitTabSwitch(a, s, t0.Add(100*time.Second))
	if len(alerts) != 0 {
		t.Fatalf("expected no alert after window slid, got %d", len(alerts))
	}
	if len(s.TabSwitchTimes) != 1 {
		t.Fatalf("expected 1 in-window switch, got %d", len(s.TabSwitchTimes))
	}
}

func TestHeartbeatTimeoutBoundary(t *testing.T) {
	a := New(Config{}, nil, nil)
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t0)

	ev := &models.Event{UserID: "u1", SessionID: "s1", EventType: models.EventRightClick, Timestamp: t0.Add(9 * time.Second)}
	if alerts := a.Analyze(context.Background(), ev, s); len(alerts) != 0 {
		t.Fatalf("no alert expected at +9s, got %d", len(alerts))
	}

	ev.Timestamp = t0.Add(11 * time.Second)
	alerts := a.Analyze(context.Background(), ev, s)
	if len(alerts) != 1 {
		t.Fatalf("expected exactly 1 alert at +11s, got %d", len(alerts))
	}
	if alerts[0].Severity != models.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", alerts[0].Severity)
	}
}

func TestInactivityRuleReadsDuration(t *testing.T) {
	a := New(Config{}, nil, nil)
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t0)
	s.LastHeartbeat = t0

	ev := &models.Event{
		UserID:    "u1",
		SessionID: "s1",
		EventType: models.EventInactivity,
		Timestamp: t0.Add(time.Second),
		Metadata:  map[string]interface{}{"duration": float64(45)},
	}
	alerts := a.Analyze(context.Background(), ev, s)
	if len(alerts) != 1 || alerts[0].Severity != models.SeverityMedium {
		t.Fatalf("expected one medium alert, got %+v", alerts)
	}

	ev.Metadata["duration"] = float64(20)
	s2 := newSession(t0)
	if alerts := a.Analyze(context.Background(), ev, s2); len(alerts) != 0 {
		t.Fatalf("20s inactivity should not alert, got %d", len(alerts))
	}
}

func TestRiskFloorAppliesWhenAnyAlertFires(t *testing.T) {
	// Scorer reports a calm margin (risk 0.1) but the inactivity rule
	// fires; the stored score must still be clamped to the floor.
	sc := &fixedScorer{margin: 0.4}
	a := New(Config{}, nil, sc)
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t0)

	ev := &models.Event{
		UserID:    "u1",
		SessionID: "s1",
		EventType: models.EventInactivity,
		Timestamp: t0.Add(time.Second),
		Metadata:  map[string]interface{}{"duration": float64(60)},
	}
	alerts := a.Analyze(context.Background(), ev, s)
	if len(alerts) == 0 {
		t.Fatalf("expected inactivity alert")
	}
	if s.RiskScore < 0.8 {
		t.Fatalf("risk floor not applied: %f", s.RiskScore)
	}
}

func TestScorerOutputStoredUnconditionally(t *testing.T) {
	sc := &fixedScorer{margin: 0.3} // risk 0.2, below alert threshold
	a := New(Config{}, nil, sc)
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t0)
	s.RiskScore = 0.9

	ev := &models.Event{UserID: "u1", SessionID: "s1", EventType: models.EventHeartbeat, Timestamp: t0.Add(time.Second)}
	s.LastHeartbeat = ev.Timestamp
	alerts := a.Analyze(context.Background(), ev, s)
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %d", len(alerts))
	}
	if s.RiskScore != 0.2 {
		t.Fatalf("expected scorer output 0.2 stored, got %f", s.RiskScore)
	}
	if sc.calls != 1 {
		t.Fatalf("expected 1 scorer call, got %d", sc.calls)
	}
}

func TestScorerAboveThresholdFiresHighAlert(t *testing.T) {
	sc := &fixedScorer{margin: -0.4} // risk 0.9
	a := New(Config{}, nil, sc)
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t0)

	ev := &models.Event{UserID: "u1", SessionID: "s1", EventType: models.EventHeartbeat, Timestamp: t0.Add(time.Second)}
	s.LastHeartbeat = ev.Timestamp
	alerts := a.Analyze(context.Background(), ev, s)
	if len(alerts) != 1 || alerts[0].Severity != models.SeverityHigh {
		t.Fatalf("expected one high alert from the scorer, got %+v", alerts)
	}
	if s.RiskScore != 0.9 {
		t.Fatalf("expected risk 0.9, got %f", s.RiskScore)
	}
}

func TestFailingScorerDegradesToNoContribution(t *testing.T) {
	sc := &fixedScorer{err: errors.New("connection refused")}
	a := New(Config{}, nil, sc)
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t0)
	s.RiskScore = 0.4

	ev := &models.Event{UserID: "u1", SessionID: "s1", EventType: models.EventHeartbeat, Timestamp: t0.Add(time.Second)}
	s.LastHeartbeat = ev.Timestamp
	alerts := a.Analyze(context.Background(), ev, s)
	if len(alerts) != 0 {
		t.Fatalf("scorer failure must not alert, got %d", len(alerts))
	}
	if s.RiskScore != 0.4 {
		t.Fatalf("risk score must be untouched on scorer failure, got %f", s.RiskScore)
	}
}

func TestAlertsCarryEventContext(t *testing.T) {
	a := New(Config{}, nil, nil)
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t0)

	meta := map[string]interface{}{"duration": float64(120)}
	ev := &models.Event{
		UserID:    "u7",
		SessionID: "s7",
		EventType: models.EventInactivity,
		Timestamp: t0.Add(time.Second),
		Metadata:  meta,
	}
	s.LastHeartbeat = ev.Timestamp
	alerts := a.Analyze(context.Background(), ev, s)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	al := alerts[0]
	if al.UserID != "u7" || al.SessionID != "s7" || al.EventType != models.EventInactivity {
		t.Fatalf("alert missing event context: %+v", al)
	}
	if al.AlertID == "" {
		t.Fatalf("alert id must be set")
	}
	if al.Metadata["duration"] != float64(120) {
		t.Fatalf("alert must copy triggering metadata")
	}
	if al.Resolved {
		t.Fatalf("alerts start unresolved")
	}
}
