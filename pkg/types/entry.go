// Package types defines the core data structures for the mnemo memory
// subsystem: durable agent facts, conflict audit records, maintenance runs,
// and the health report.
package types

import (
	"strings"
	"time"
)

// Status represents the lifecycle state of a memory entry.
type Status string

const (
	// StatusActive indicates the entry is eligible for recall and
	// conflict comparison.
	StatusActive Status = "active"

	// StatusArchived indicates the entry was aged out or consolidated.
	// Archived entries are never returned by recall.
	StatusArchived Status = "archived"

	// StatusContradicted indicates the entry lost a conflict arbitration
	// and was replaced by a newer fact.
	StatusContradicted Status = "contradicted"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []Status{StatusActive, StatusArchived, StatusContradicted}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Importance represents how valuable an entry is to its owning agent.
// Importance never increases automatically: it is set at write time and
// only ever downgraded by the decay engine.
type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceMedium   Importance = "medium"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// ValidImportances contains all valid importance values, lowest first.
var ValidImportances = []Importance{
	ImportanceLow,
	ImportanceMedium,
	ImportanceHigh,
	ImportanceCritical,
}

// IsValid reports whether i is a known importance level.
func (i Importance) IsValid() bool {
	for _, v := range ValidImportances {
		if i == v {
			return true
		}
	}
	return false
}

// Weight maps an importance level onto the [0,1] scale used by the recall
// scoring formula: critical=1.0, high=0.75, medium=0.5, low=0.25.
func (i Importance) Weight() float64 {
	switch i {
	case ImportanceCritical:
		return 1.0
	case ImportanceHigh:
		return 0.75
	case ImportanceMedium:
		return 0.5
	default:
		return 0.25
	}
}

// Visibility controls which agents may read an entry.
type Visibility string

const (
	// VisibilityPrivate restricts reads to the owning agent.
	VisibilityPrivate Visibility = "private"

	// VisibilityShared allows cluster peers to read the entry.
	VisibilityShared Visibility = "shared"

	// VisibilityBroadcast actively surfaces the entry to cluster peers
	// during recall augmentation.
	VisibilityBroadcast Visibility = "broadcast"
)

// ValidVisibilities contains all valid visibility values.
var ValidVisibilities = []Visibility{
	VisibilityPrivate,
	VisibilityShared,
	VisibilityBroadcast,
}

// IsValid reports whether v is a known visibility.
func (v Visibility) IsValid() bool {
	for _, valid := range ValidVisibilities {
		if v == valid {
			return true
		}
	}
	return false
}

// MaxContentLength bounds the free-text content of an entry. The subsystem
// manages short facts, not documents.
const MaxContentLength = 2000

// MemoryEntry is one durable fact owned by an agent.
type MemoryEntry struct {
	// ID is the store-assigned numeric identifier. Immutable.
	ID int64 `json:"id"`

	// AgentID names the agent whose knowledge this is. The entry is
	// exclusively owned by that agent's namespace for writes; peers may
	// read it per Visibility.
	AgentID string `json:"agent_id"`

	// Content is the fact text, bounded by MaxContentLength.
	Content string `json:"content"`

	// Category is a short topical label such as "schedule" or "financial".
	Category string `json:"category"`

	// Keywords is the set of normalized tokens extracted from Content,
	// used for lexical matching.
	Keywords []string `json:"keywords,omitempty"`

	// Importance ranks the entry for recall scoring and decay exemption.
	Importance Importance `json:"importance"`

	// Embedding is the optional fixed-length vector for semantic search.
	// Nil when the embedding provider was unavailable at write time.
	Embedding []float32 `json:"embedding,omitempty"`

	// Status is the lifecycle state. Only active entries are eligible
	// for recall or conflict comparison.
	Status Status `json:"status"`

	// SupersededBy references the entry that replaced this one. Set only
	// when the entry is archived via conflict resolution or consolidation;
	// once set it is never cleared. The pointer always leads from an
	// archived entry to one that was active when it was set, so chains
	// never cycle.
	SupersededBy *int64 `json:"superseded_by,omitempty"`

	// AccessCount counts successful recalls that returned this entry.
	AccessCount int `json:"access_count"`

	// LastAccessedAt is the time of the most recent recall hit.
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// Visibility controls cross-agent reads.
	Visibility Visibility `json:"visibility"`

	// SourceAgent is the original author. Normally equal to AgentID
	// unless the entry was copied across a cluster.
	SourceAgent string `json:"source_agent,omitempty"`

	// CreatedAt is the creation timestamp. Immutable.
	CreatedAt time.Time `json:"created_at"`
}

// AgeDays returns the entry age in days at the given instant.
func (e *MemoryEntry) AgeDays(now time.Time) float64 {
	return now.Sub(e.CreatedAt).Hours() / 24.0
}

// HasEmbedding reports whether the entry carries a semantic vector.
func (e *MemoryEntry) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// Validate checks the entry fields that callers supply at write time.
// Store-assigned fields (ID, CreatedAt) are not checked.
func (e *MemoryEntry) Validate() error {
	if strings.TrimSpace(e.AgentID) == "" {
		return ErrMissingAgent
	}
	if strings.TrimSpace(e.Content) == "" {
		return ErrMissingContent
	}
	if len(e.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if e.Importance != "" && !e.Importance.IsValid() {
		return ErrInvalidImportance
	}
	if e.Visibility != "" && !e.Visibility.IsValid() {
		return ErrInvalidVisibility
	}
	return nil
}

// Normalize applies write-time defaults: medium importance, private
// visibility, active status, source agent = owning agent.
func (e *MemoryEntry) Normalize() {
	if e.Importance == "" {
		e.Importance = ImportanceMedium
	}
	if e.Visibility == "" {
		e.Visibility = VisibilityPrivate
	}
	if e.Status == "" {
		e.Status = StatusActive
	}
	if e.SourceAgent == "" {
		e.SourceAgent = e.AgentID
	}
}
