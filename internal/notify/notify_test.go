package notify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/mnemo/pkg/types"
)

func TestEventWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	if err := w.Notify(EventMemoryStored, map[string]int64{"entry_id": 42}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 event file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".event" {
		t.Errorf("expected .event extension, got %s", entries[0].Name())
	}
}

func TestMaintenanceCompletedSpoolsRun(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	w.MaintenanceCompleted(&types.MaintenanceRun{RunID: "01TESTRUN", Archived: 3})

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 event file, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, "events", entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if evt.Type != EventMaintenanceComplete {
		t.Errorf("event type = %s, want %s", evt.Type, EventMaintenanceComplete)
	}

	var run types.MaintenanceRun
	if err := json.Unmarshal(evt.Payload, &run); err != nil {
		t.Fatalf("invalid payload JSON: %v", err)
	}
	if run.RunID != "01TESTRUN" || run.Archived != 3 {
		t.Errorf("unexpected payload: %+v", run)
	}
}

func TestEventWatcherReceivesEvent(t *testing.T) {
	dir := t.TempDir()

	received := make(chan Event, 1)
	watcher := NewEventWatcher(dir, func(evt Event) {
		received <- evt
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)

	writer := NewEventWriter(dir)
	if err := writer.Notify(EventMemoryStored, map[string]int64{"entry_id": 7}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case evt := <-received:
		if evt.Type != EventMemoryStored {
			t.Errorf("event type = %s, want %s", evt.Type, EventMemoryStored)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()

	// Write events BEFORE starting watcher
	writer := NewEventWriter(dir)
	_ = writer.Notify(EventMemoryStored, map[string]int64{"entry_id": 1})
	_ = writer.Notify(EventMaintenanceComplete, nil)

	received := make(chan string, 10)
	watcher := NewEventWatcher(dir, func(evt Event) {
		received <- evt.Type
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for drained event %d", i)
		}
	}

	// Consumed files are deleted.
	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected spool to be empty, found %d files", len(entries))
	}
}
