// Package storage provides composable storage interfaces for the mnemo
// memory subsystem.
//
// The layer is split into small, focused interfaces that backends implement
// independently: entry lifecycle, retrieval, maintenance bulk updates, and
// the append-only audit logs. Both the SQLite and PostgreSQL backends
// implement the combined Store interface.
package storage

import (
	"context"
	"time"

	"github.com/scrypster/mnemo/pkg/types"
)

// EntryStore provides single-row lifecycle operations for memory entries.
// All writes are single-row and atomic; no invariant spans multiple rows.
type EntryStore interface {
	// Store persists a new entry and returns its store-assigned ID.
	// If entry.CreatedAt is zero it is set to the current time.
	Store(ctx context.Context, entry *types.MemoryEntry) (int64, error)

	// Get retrieves an entry by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*types.MemoryEntry, error)

	// ListActive returns active entries for the agent ordered by
	// importance rank descending, then recency descending.
	ListActive(ctx context.Context, agentID string, limit int) ([]*types.MemoryEntry, error)

	// UpdateStatus sets the lifecycle status of an entry. When
	// supersededBy is non-nil the back-reference is recorded; once set it
	// is never cleared. Returns ErrNotFound if the entry is absent.
	UpdateStatus(ctx context.Context, id int64, status types.Status, supersededBy *int64) error

	// SetImportance overwrites the importance level of an entry.
	SetImportance(ctx context.Context, id int64, importance types.Importance) error

	// IncrementAccess atomically bumps access_count and last_accessed_at
	// for every listed entry. Missing IDs are ignored.
	IncrementAccess(ctx context.Context, ids []int64) error

	// Delete hard-deletes an entry. Administrative escape hatch only;
	// normal operation never removes rows.
	Delete(ctx context.Context, id int64) error

	// Close releases any resources held by the store.
	Close() error
}

// SearchStore provides the retrieval queries behind hybrid recall and
// conflict resolution.
type SearchStore interface {
	// KeywordCandidates returns active entries for the agent whose keyword
	// set intersects tokens, or whose importance is high/critical and age
	// is under recentDays. Capped at limit.
	KeywordCandidates(ctx context.Context, agentID string, tokens []string, recentDays int, limit int) ([]*types.MemoryEntry, error)

	// SemanticCandidates ranks active embedded entries for the agent by
	// cosine similarity to vector, best first, capped at limit.
	SemanticCandidates(ctx context.Context, agentID string, vector []float32, limit int) ([]ScoredEntry, error)

	// NearestNeighbor returns the most similar active embedded entry for
	// the same agent and category, or nil when none exists.
	NearestNeighbor(ctx context.Context, agentID, category string, vector []float32) (*ScoredEntry, error)

	// PeerCandidates returns active shared/broadcast entries owned by any
	// of the peer agents whose keywords intersect tokens or whose
	// importance is critical. Capped at limit.
	PeerCandidates(ctx context.Context, peerIDs []string, tokens []string, limit int) ([]*types.MemoryEntry, error)

	// EmbeddedActive returns every active embedded entry for one agent
	// and category, used by the consolidation pass.
	EmbeddedActive(ctx context.Context, agentID, category string) ([]*types.MemoryEntry, error)

	// EmbeddedGroups lists the (agent, category) pairs that hold at least
	// one embedded active entry.
	EmbeddedGroups(ctx context.Context) ([]AgentCategory, error)
}

// MaintenanceStore provides the bulk updates and aggregate queries used by
// the decay pass and health reporting. The bulk updates are idempotent:
// re-running them immediately affects zero additional rows.
type MaintenanceStore interface {
	// ArchiveStale archives active non-critical entries per the params,
	// returning the number of rows archived.
	ArchiveStale(ctx context.Context, p DecayParams, now time.Time) (int, error)

	// DecayImportance downgrades high->medium and medium->low per the
	// params, returning the number of rows changed.
	DecayImportance(ctx context.Context, p DecayParams, now time.Time) (int, error)

	// MergeAccessCount adds count to the keeper's access_count. Used when
	// consolidation folds an archived duplicate into its survivor.
	MergeAccessCount(ctx context.Context, keeperID int64, count int) error

	// HealthSnapshot aggregates status counts, per-agent and per-category
	// breakdowns, embedding coverage, staleness, and contradiction rate.
	HealthSnapshot(ctx context.Context, staleAfterDays int, now time.Time) (*types.HealthReport, error)
}

// AuditLog provides the append-only conflict and maintenance records.
type AuditLog interface {
	// AppendConflict records a conflict resolution. Append-only.
	AppendConflict(ctx context.Context, rec *types.ConflictRecord) error

	// ListConflicts returns the most recent conflict records, newest first.
	ListConflicts(ctx context.Context, limit int) ([]types.ConflictRecord, error)

	// AppendMaintenanceRun records one decay pass. Append-only.
	AppendMaintenanceRun(ctx context.Context, run *types.MaintenanceRun) error

	// ListMaintenanceRuns returns recent runs, newest first.
	ListMaintenanceRuns(ctx context.Context, limit int) ([]types.MaintenanceRun, error)
}

// Store is the combined interface the engine operates against.
type Store interface {
	EntryStore
	SearchStore
	MaintenanceStore
	AuditLog
}
