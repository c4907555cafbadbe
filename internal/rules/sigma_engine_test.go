package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sessionwatch/pkg/models"
)

const copyPasteRule = `title: Clipboard use during session
id: sw-copy-paste
level: low
detection:
  selection:
    event_type: copy_paste
  condition: selection
`

const aggregationRule = `title: Unsupported aggregation rule
id: sw-agg
level: high
detection:
  selection:
    event_type: tab_switch
  condition: selection | count() > 5
`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write rule: %v", err)
	}
}

func TestSigmaEngineMatchesEventType(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "copy_paste.yml", copyPasteRule)

	engine, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if stats.Loaded != 1 {
		t.Fatalf("expected 1 loaded rule, got %+v", stats)
	}

	event := &models.Event{
		UserID:    "u1",
		SessionID: "s1",
		EventType: models.EventCopyPaste,
		Timestamp: time.Now().UTC(),
	}
	tags := engine.Apply(event)
	if len(tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(tags))
	}
	if tags[0].ID != "sw-copy-paste" || tags[0].Severity != "low" {
		t.Fatalf("unexpected tag: %+v", tags[0])
	}

	event.EventType = models.EventHeartbeat
	if tags := engine.Apply(event); tags != nil {
		t.Fatalf("heartbeat should not match, got %+v", tags)
	}
}

func TestSigmaEngineSkipsAggregationRules(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "agg.yml", aggregationRule)

	_, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if stats.Loaded != 0 || stats.SkippedComplex != 1 {
		t.Fatalf("expected aggregation rule to be skipped, got %+v", stats)
	}
}
