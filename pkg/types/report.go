package types

import "time"

// HealthReport is the read-only operational snapshot produced by the
// health reporter. Pure aggregation over the store; no state mutation.
type HealthReport struct {
	GeneratedAt time.Time `json:"generated_at"`

	// TotalEntries counts every entry regardless of status.
	TotalEntries int `json:"total_entries"`

	// ByStatus breaks the total down by lifecycle status.
	ByStatus map[Status]int `json:"by_status"`

	// ByAgent counts active entries per owning agent.
	ByAgent map[string]int `json:"by_agent"`

	// ByCategory counts active entries per category.
	ByCategory map[string]int `json:"by_category"`

	// EmbeddingCoverage is the fraction of active entries carrying a
	// vector, in [0,1].
	EmbeddingCoverage float64 `json:"embedding_coverage"`

	// StaleCount counts active entries with zero accesses older than the
	// configured stale window.
	StaleCount int `json:"stale_count"`

	// ContradictionRate is contradicted / total, in [0,1]. Zero when the
	// store is empty.
	ContradictionRate float64 `json:"contradiction_rate"`
}
