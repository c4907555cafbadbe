package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sessionwatch/internal/logger"
	"sessionwatch/internal/rules"
	"sessionwatch/internal/scorer"
	"sessionwatch/pkg/models"
)

// riskFloor is the minimum risk score for any session that fired an
// alert during an evaluation. A rule hit is never reported low-risk,
// whatever the learned scorer says.
const riskFloor = 0.8

// Config controls the rule thresholds.
type Config struct {
	TabSwitchThreshold  int
	TabSwitchWindow     time.Duration
	InactivityThreshold time.Duration
	HeartbeatTimeout    time.Duration
	ScoreThreshold      float64
}

// Analyzer applies rule checks and the anomaly scorer to one event
// plus the session's post-update state.
type Analyzer struct {
	cfg    Config
	engine rules.Engine
	scorer scorer.Scorer
}

// New creates an analyzer. Engine and sc may be nil; the matching
// rules are then skipped.
func New(cfg Config, engine rules.Engine, sc scorer.Scorer) *Analyzer {
	if cfg.TabSwitchThreshold <= 0 {
		cfg.TabSwitchThreshold = 3
	}
	if cfg.TabSwitchWindow <= 0 {
		cfg.TabSwitchWindow = 60 * time.Second
	}
	if cfg.InactivityThreshold <= 0 {
		cfg.InactivityThreshold = 30 * time.Second
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 10 * time.Second
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 0.7
	}
	return &Analyzer{cfg: cfg, engine: engine, scorer: sc}
}

// Analyze evaluates every rule against the freshly updated session and
// returns the alerts that fired. It prunes the tab-switch window and
// rewrites the session risk score; callers must hold the session's
// serialization (table.Apply does).
//
// Rules are independent: all that match fire, no short-circuiting.
func (a *Analyzer) Analyze(ctx context.Context, event *models.Event, s *models.Session) []*models.Alert {
	var alerts []*models.Alert

	if event.EventType == models.EventTabSwitch {
		if alert := a.checkTabSwitchBurst(event, s); alert != nil {
			alerts = append(alerts, alert)
		}
	}

	if event.EventType == models.EventInactivity {
		if alert := a.checkInactivity(event); alert != nil {
			alerts = append(alerts, alert)
		}
	}

	// Runs on every event, so a session that keeps emitting events
	// without heartbeats re-triggers this until the agent recovers.
	if alert := a.checkHeartbeatTimeout(event, s); alert != nil {
		alerts = append(alerts, alert)
	}

	if a.engine != nil {
		for _, tag := range a.engine.Apply(event) {
			name := tag.Name
			if name == "" {
				name = tag.ID
			}
			alerts = append(alerts, models.NewAlert(event, severityFromLevel(tag.Severity),
				fmt.Sprintf("Detection rule matched: %s", name)))
		}
	}

	if alert := a.scoreAnomaly(ctx, event, s); alert != nil {
		alerts = append(alerts, alert)
	}

	if len(alerts) > 0 && s.RiskScore < riskFloor {
		s.RiskScore = riskFloor
	}

	return alerts
}

// checkTabSwitchBurst maintains the sliding window of recent tab
// switches and fires when the in-window count exceeds the threshold.
// The window is time-pruned on every tab_switch; it never accumulates
// across the session lifetime.
func (a *Analyzer) checkTabSwitchBurst(event *models.Event, s *models.Session) *models.Alert {
	cutoff := event.Timestamp.Add(-a.cfg.TabSwitchWindow)
	idx := 0
	for idx < len(s.TabSwitchTimes) && s.TabSwitchTimes[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		s.TabSwitchTimes = append(s.TabSwitchTimes[:0], s.TabSwitchTimes[idx:]...)
	}

	count := len(s.TabSwitchTimes)
	if count <= a.cfg.TabSwitchThreshold {
		return nil
	}
	return models.NewAlert(event, models.SeverityHigh,
		fmt.Sprintf("Excessive tab switching detected: %d switches in %s", count, a.cfg.TabSwitchWindow))
}

func (a *Analyzer) checkInactivity(event *models.Event) *models.Alert {
	duration := time.Duration(event.MetaNumber("duration", 0) * float64(time.Second))
	if duration <= a.cfg.InactivityThreshold {
		return nil
	}
	return models.NewAlert(event, models.SeverityMedium,
		fmt.Sprintf("User inactive for %.0f seconds", duration.Seconds()))
}

func (a *Analyzer) checkHeartbeatTimeout(event *models.Event, s *models.Session) *models.Alert {
	if s.LastHeartbeat.IsZero() {
		return nil
	}
	elapsed := event.Timestamp.Sub(s.LastHeartbeat)
	if elapsed <= a.cfg.HeartbeatTimeout {
		return nil
	}
	return models.NewAlert(event, models.SeverityCritical,
		fmt.Sprintf("Heartbeat timeout: %.1f seconds since last heartbeat", elapsed.Seconds()))
}

// scoreAnomaly asks the configured scorer for a risk score and stores
// it on the session unconditionally. A missing or failing scorer
// contributes nothing; rule-based alerts still stand.
func (a *Analyzer) scoreAnomaly(ctx context.Context, event *models.Event, s *models.Session) *models.Alert {
	if a.scorer == nil {
		return nil
	}

	features := featureVector(event, s)
	margin, err := a.scorer.Score(ctx, features)
	if err != nil {
		logger.Warnf("Anomaly scorer unavailable for session %s: %v", s.SessionID, err)
		return nil
	}

	risk := scorer.NormalizeMargin(margin)
	s.RiskScore = risk
	if risk <= a.cfg.ScoreThreshold {
		return nil
	}
	return models.NewAlert(event, models.SeverityHigh,
		fmt.Sprintf("Anomaly model flagged suspicious activity (score: %.2f)", risk))
}

func featureVector(event *models.Event, s *models.Session) []float64 {
	return []float64{
		float64(s.EventCount),
		float64(len(s.TabSwitchTimes)),
		s.RiskScore,
		event.MetaNumber("duration", 0),
		event.MetaNumber("click_count", 0),
		event.MetaNumber("keypress_count", 0),
	}
}

func severityFromLevel(level string) models.Severity {
	switch strings.ToLower(level) {
	case "critical":
		return models.SeverityCritical
	case "high":
		return models.SeverityHigh
	case "medium":
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
