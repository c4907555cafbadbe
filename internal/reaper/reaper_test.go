package reaper

import (
	"context"
	"testing"
	"time"

	"sessionwatch/internal/sessiontable"
	"sessionwatch/pkg/models"
)

func TestSweepRemovesEndedEvenWithFreshHeartbeat(t *testing.T) {
	table := sessiontable.New()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	table.UpsertStart("s1", "u1", now)
	if _, err := table.Apply("s1", func(s *models.Session) { s.Status = models.StatusEnded }); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	r := New(table, time.Minute, 5*time.Minute)
	r.now = func() time.Time { return now }

	if removed := r.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, ok := table.Get("s1"); ok {
		t.Fatalf("ended session should be gone")
	}
}

func TestSweepExpiryBoundary(t *testing.T) {
	table := sessiontable.New()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	table.UpsertStart("stale", "u1", now.Add(-301*time.Second))
	table.UpsertStart("fresh", "u2", now.Add(-299*time.Second))

	r := New(table, time.Minute, 300*time.Second)
	r.now = func() time.Time { return now }

	if removed := r.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, ok := table.Get("stale"); ok {
		t.Fatalf("301s-old session should be removed")
	}
	if _, ok := table.Get("fresh"); !ok {
		t.Fatalf("299s-old session should be retained")
	}
}

func TestSweepSkipsRevivedSession(t *testing.T) {
	table := sessiontable.New()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	table.UpsertStart("s1", "u1", now.Add(-10*time.Minute))

	r := New(table, time.Minute, 5*time.Minute)
	r.now = func() time.Time { return now }

	// A heartbeat lands between the snapshot and the removal check;
	// the re-check under the session lock must keep the row.
	snap := table.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 session in snapshot")
	}
	if _, err := table.Apply("s1", func(s *models.Session) { s.LastHeartbeat = now }); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if removed := r.Sweep(); removed != 0 {
		t.Fatalf("revived session must not be reaped, removed=%d", removed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	table := sessiontable.New()
	r := New(table, 5*time.Millisecond, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reaper did not stop after cancellation")
	}
}
