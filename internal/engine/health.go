package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// HealthReporter produces the read-only operational snapshot of the store.
type HealthReporter struct {
	store          storage.MaintenanceStore
	staleAfterDays int
}

// NewHealthReporter creates a reporter. staleAfterDays defines the window
// after which an unaccessed active entry counts as stale.
func NewHealthReporter(store storage.MaintenanceStore, staleAfterDays int) *HealthReporter {
	return &HealthReporter{store: store, staleAfterDays: staleAfterDays}
}

// Report aggregates the current state of the store. It mutates nothing.
func (h *HealthReporter) Report(ctx context.Context) (*types.HealthReport, error) {
	report, err := h.store.HealthSnapshot(ctx, h.staleAfterDays, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("health report: %w", err)
	}
	return report, nil
}
