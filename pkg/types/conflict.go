package types

import "time"

// Resolution labels recorded in ConflictRecord rows.
const (
	ResolutionSuperseded   = "superseded"   // old entry lost a contradiction
	ResolutionConsolidated = "consolidated" // near-duplicate pair merged
)

// ConflictRecord is an append-only audit row produced whenever the
// resolver or the consolidation pass archives or merges an entry.
type ConflictRecord struct {
	ID int64 `json:"id"`

	// WinnerID is the surviving entry. Nil when the resolution has no
	// surviving counterpart.
	WinnerID *int64 `json:"winner_id,omitempty"`

	// LoserID is the entry that was archived.
	LoserID int64 `json:"loser_id"`

	// Similarity is the cosine similarity that triggered the resolution.
	// Nil when no vector comparison was involved.
	Similarity *float64 `json:"similarity,omitempty"`

	// Resolution is one of the Resolution* labels.
	Resolution string `json:"resolution"`

	// Reason is a free-text explanation, e.g. the judge verdict.
	Reason string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// MaintenanceRun is one append-only record of a decay/consolidation pass.
type MaintenanceRun struct {
	// RunID is a ULID assigned when the pass starts.
	RunID string `json:"run_id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Aggregate counts across the three steps.
	Archived     int `json:"archived"`
	Decayed      int `json:"decayed"`
	Consolidated int `json:"consolidated"`

	// Errors holds per-step error messages; a partial failure still
	// records the counts from the steps that succeeded.
	Errors []string `json:"errors,omitempty"`
}
