package audit

import (
	"path/filepath"
	"testing"
)

func TestLogAndRecentEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.LogEvent("swift-otter", "spawn", "pid=123"); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if err := db.LogEvent("swift-otter", "exit", "code=0"); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	events, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].EventType != "exit" {
		t.Fatalf("most recent event = %q, want exit", events[0].EventType)
	}
}
