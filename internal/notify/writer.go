// Package notify provides cross-process event notification through a
// shared spool directory. The serve process watches the spool and relays
// events to connected websocket clients, so a decay pass run from the CLI
// still shows up in the dashboard of a running server.
package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/scrypster/mnemo/pkg/types"
)

// Event types emitted by the subsystem.
const (
	EventMaintenanceComplete = "maintenance_complete"
	EventMemoryStored        = "memory_stored"
)

// Event is the payload written to an event file.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    int64           `json:"time"`
}

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Notify writes an event file carrying payload as JSON.
// Safe to call concurrently. Errors are returned but not fatal.
func (w *EventWriter) Notify(eventType string, payload any) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	evt := Event{Type: eventType, Time: time.Now().UnixNano()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("notify: marshal payload: %w", err)
		}
		evt.Payload = raw
	}
	data, _ := json.Marshal(evt)
	filename := fmt.Sprintf("%d-%s.event", evt.Time, eventType)
	return os.WriteFile(filepath.Join(w.dir, filename), data, 0o600)
}

// MaintenanceCompleted implements the engine's maintenance notifier by
// spooling the finished run. Write failures are logged, never fatal.
func (w *EventWriter) MaintenanceCompleted(run *types.MaintenanceRun) {
	if err := w.Notify(EventMaintenanceComplete, run); err != nil {
		log.Printf("notify: maintenance event write failed: %v", err)
	}
}
