package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/scrypster/mnemo/internal/llm"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// Action describes what the resolver did with an incoming entry.
type Action string

const (
	// ActionInserted means the entry was written as a new row.
	ActionInserted Action = "inserted"
	// ActionSkipped means an existing entry was kept and the incoming one
	// was not written. EntryID points at the surviving row.
	ActionSkipped Action = "skipped"
	// ActionReplaced means the entry was written and the nearest existing
	// entry was archived as contradicted.
	ActionReplaced Action = "replaced"
)

// Resolution is the outcome of resolving one incoming entry.
type Resolution struct {
	Action     Action
	EntryID    int64
	Similarity *float64
	Verdict    llm.Verdict
}

// Resolver decides whether an incoming entry is new information, a duplicate
// of an existing entry, or a contradiction that needs arbitration. An
// unavailable or failing judge always degrades to plain insertion.
type Resolver struct {
	store              storage.Store
	judge              *llm.Judge
	duplicateThreshold float64
	arbitrateThreshold float64
}

// NewResolver creates a resolver. judge may be nil to disable arbitration.
func NewResolver(store storage.Store, judge *llm.Judge, duplicateThreshold, arbitrateThreshold float64) *Resolver {
	return &Resolver{
		store:              store,
		judge:              judge,
		duplicateThreshold: duplicateThreshold,
		arbitrateThreshold: arbitrateThreshold,
	}
}

// Resolve compares entry against its nearest active neighbor in the same
// agent and category, then inserts, skips, or replaces accordingly. Storage
// failures are returned as-is; only judge failures degrade.
func (r *Resolver) Resolve(ctx context.Context, entry *types.MemoryEntry) (*Resolution, error) {
	if !entry.HasEmbedding() {
		return r.insert(ctx, entry, nil, llm.VerdictUnknown)
	}

	neighbor, err := r.store.NearestNeighbor(ctx, entry.AgentID, entry.Category, entry.Embedding)
	if err != nil {
		return nil, fmt.Errorf("resolve: nearest neighbor lookup: %w", err)
	}
	if neighbor == nil {
		return r.insert(ctx, entry, nil, llm.VerdictUnknown)
	}

	sim := neighbor.Similarity
	if sim > r.duplicateThreshold {
		log.Printf("engine: skipped near-duplicate of entry %d (similarity %.3f)", neighbor.Entry.ID, sim)
		return &Resolution{Action: ActionSkipped, EntryID: neighbor.Entry.ID, Similarity: &sim}, nil
	}
	if sim <= r.arbitrateThreshold {
		return r.insert(ctx, entry, &sim, llm.VerdictUnknown)
	}

	verdict := r.arbitrate(ctx, neighbor.Entry.Content, entry.Content)
	switch verdict {
	case llm.VerdictDuplicate, llm.VerdictOldWins:
		log.Printf("engine: judge kept entry %d over incoming content (%s, similarity %.3f)", neighbor.Entry.ID, verdict, sim)
		return &Resolution{Action: ActionSkipped, EntryID: neighbor.Entry.ID, Similarity: &sim, Verdict: verdict}, nil

	case llm.VerdictNewWins:
		res, err := r.insert(ctx, entry, &sim, verdict)
		if err != nil {
			return nil, err
		}
		if err := r.store.UpdateStatus(ctx, neighbor.Entry.ID, types.StatusContradicted, &res.EntryID); err != nil {
			return nil, fmt.Errorf("resolve: archive contradicted entry %d: %w", neighbor.Entry.ID, err)
		}
		r.audit(ctx, &types.ConflictRecord{
			WinnerID:   &res.EntryID,
			LoserID:    neighbor.Entry.ID,
			Similarity: &sim,
			Resolution: types.ResolutionSuperseded,
			Reason:     "judge ruled the new entry supersedes the old",
		})
		res.Action = ActionReplaced
		return res, nil

	default:
		// Compatible, or the judge was unavailable. Both facts stand.
		return r.insert(ctx, entry, &sim, verdict)
	}
}

func (r *Resolver) insert(ctx context.Context, entry *types.MemoryEntry, sim *float64, verdict llm.Verdict) (*Resolution, error) {
	id, err := r.store.Store(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("resolve: store entry: %w", err)
	}
	return &Resolution{Action: ActionInserted, EntryID: id, Similarity: sim, Verdict: verdict}, nil
}

func (r *Resolver) arbitrate(ctx context.Context, existing, incoming string) llm.Verdict {
	if r.judge == nil || !r.judge.Available() {
		return llm.VerdictUnknown
	}
	return r.judge.Arbitrate(ctx, existing, incoming)
}

// audit appends a conflict record. Audit failures are logged, never fatal.
func (r *Resolver) audit(ctx context.Context, rec *types.ConflictRecord) {
	if err := r.store.AppendConflict(ctx, rec); err != nil {
		log.Printf("engine: conflict audit append failed: %v", err)
	}
}
