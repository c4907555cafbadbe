package models

import "testing"

func TestParseEventTypeClosedEnum(t *testing.T) {
	for _, raw := range []string{
		"session_start", "session_end", "heartbeat", "tab_switch",
		"inactivity", "screen_lock", "device_change", "copy_paste",
		"right_click", "keyboard_shortcut",
	} {
		if _, ok := ParseEventType(raw); !ok {
			t.Fatalf("expected %q to parse", raw)
		}
	}
	for _, raw := range []string{"", "TAB_SWITCH", "tab-switch", "reboot"} {
		if et, ok := ParseEventType(raw); ok {
			t.Fatalf("expected %q to be rejected, got %s", raw, et)
		}
	}
}

func TestMetaNumber(t *testing.T) {
	e := &Event{Metadata: map[string]interface{}{
		"duration":    float64(42),
		"click_count": 7,
		"label":       "not a number",
	}}
	if got := e.MetaNumber("duration", 0); got != 42 {
		t.Fatalf("duration=%f", got)
	}
	if got := e.MetaNumber("click_count", 0); got != 7 {
		t.Fatalf("click_count=%f", got)
	}
	if got := e.MetaNumber("label", 5); got != 5 {
		t.Fatalf("non-numeric should fall back to default, got %f", got)
	}
	if got := e.MetaNumber("missing", 3); got != 3 {
		t.Fatalf("missing key should fall back to default, got %f", got)
	}
}
