package reaper

import (
	"context"
	"time"

	"sessionwatch/internal/logger"
	"sessionwatch/internal/metrics"
	"sessionwatch/internal/sessiontable"
	"sessionwatch/pkg/models"
)

// Reaper periodically evicts ended and stale sessions from the table.
// It never touches session rows outside a single conditional-remove
// step, so sweeps run safely alongside ingestion.
type Reaper struct {
	table    *sessiontable.Table
	interval time.Duration
	expiry   time.Duration
	now      func() time.Time
}

// New creates a reaper.
func New(table *sessiontable.Table, interval, expiry time.Duration) *Reaper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if expiry <= 0 {
		expiry = 300 * time.Second
	}
	return &Reaper{
		table:    table,
		interval: interval,
		expiry:   expiry,
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := r.Sweep()
			if removed > 0 {
				logger.Infof("Reaper removed %d sessions", removed)
			}
		}
	}
}

// Sweep removes ended sessions and sessions whose last heartbeat is
// older than the expiry threshold. Removal re-checks the condition
// under the session lock, so a session revived between snapshot and
// removal survives.
func (r *Reaper) Sweep() int {
	now := r.now()
	removed := 0
	for _, s := range r.table.Snapshot() {
		switch {
		case s.Status == models.StatusEnded:
			if r.table.RemoveIf(s.SessionID, func(cur *models.Session) bool {
				return cur.Status == models.StatusEnded
			}) {
				metrics.SessionsReaped.WithLabelValues("ended").Inc()
				logger.Debugf("Reaped ended session %s", s.SessionID)
				removed++
			}
		case now.Sub(s.LastHeartbeat) > r.expiry:
			if r.table.RemoveIf(s.SessionID, func(cur *models.Session) bool {
				return now.Sub(cur.LastHeartbeat) > r.expiry
			}) {
				metrics.SessionsReaped.WithLabelValues("expired").Inc()
				logger.Debugf("Reaped expired session %s", s.SessionID)
				removed++
			}
		}
	}
	metrics.ActiveSessions.Set(float64(r.table.Len()))
	return removed
}
