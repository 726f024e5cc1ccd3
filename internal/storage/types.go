package storage

import (
	"errors"

	"github.com/scrypster/mnemo/pkg/types"
)

var (
	// ErrNotFound indicates that the requested entry was not found.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// ScoredEntry pairs an entry with the cosine similarity that ranked it.
type ScoredEntry struct {
	Entry *types.MemoryEntry

	// Similarity is the cosine similarity to the query vector
	// (distance converted via s = 1 - d), clamped to [0,1].
	Similarity float64
}

// AgentCategory identifies one (agent, category) group that holds at least
// one embedded active entry. Used to scope the consolidation pass.
type AgentCategory struct {
	AgentID  string
	Category string
}

// DecayParams carries the tuning windows for the decay pass. The numeric
// defaults live in internal/config; they are product tuning values and
// nothing beyond the comparisons below should be inferred from them.
type DecayParams struct {
	// Archive step: active non-critical entries with zero accesses older
	// than StaleZeroAccessDays, or fewer than LowAccessThreshold accesses
	// older than StaleLowAccessDays, are archived.
	StaleZeroAccessDays int
	StaleLowAccessDays  int
	LowAccessThreshold  int

	// Importance step: high entries older than HighAgeDays with no access
	// in HighIdleDays drop to medium; medium entries older than
	// MediumAgeDays with no access in MediumIdleDays drop to low.
	// Critical entries are never touched.
	HighAgeDays    int
	HighIdleDays   int
	MediumAgeDays  int
	MediumIdleDays int
}
