package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/internal/vector"
	"github.com/scrypster/mnemo/pkg/types"
)

// MaintenanceNotifier receives the record of a finished decay pass.
// Implementations must not block.
type MaintenanceNotifier interface {
	MaintenanceCompleted(run *types.MaintenanceRun)
}

// DecayEngine runs the periodic maintenance pass: archive stale entries,
// downgrade importance over time, and consolidate near-duplicate pairs.
//
// The three steps are independent and idempotent; a failure in one is
// recorded on the run and the remaining steps still execute.
type DecayEngine struct {
	store    storage.Store
	embedder *Embedder
	params   storage.DecayParams

	consolidationThreshold float64
	notifier               MaintenanceNotifier
}

// NewDecayEngine creates a decay engine. notifier may be nil.
func NewDecayEngine(store storage.Store, embedder *Embedder, params storage.DecayParams, consolidationThreshold float64, notifier MaintenanceNotifier) *DecayEngine {
	return &DecayEngine{
		store:                  store,
		embedder:               embedder,
		params:                 params,
		consolidationThreshold: consolidationThreshold,
		notifier:               notifier,
	}
}

// Run executes one full maintenance pass and appends its record to the
// maintenance log. The returned run always carries the counts from the
// steps that succeeded, alongside any step errors.
func (d *DecayEngine) Run(ctx context.Context) *types.MaintenanceRun {
	now := time.Now().UTC()
	run := &types.MaintenanceRun{
		RunID:     ulid.Make().String(),
		StartedAt: now,
	}
	log.Printf("engine: maintenance run %s starting", run.RunID)

	if n, err := d.store.ArchiveStale(ctx, d.params, now); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("archive stale: %v", err))
	} else {
		run.Archived = n
	}

	if n, err := d.store.DecayImportance(ctx, d.params, now); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("decay importance: %v", err))
	} else {
		run.Decayed = n
	}

	if d.embedder.Configured() {
		if n, err := d.consolidate(ctx); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("consolidate: %v", err))
			run.Consolidated = n
		} else {
			run.Consolidated = n
		}
	}

	run.FinishedAt = time.Now().UTC()
	if err := d.store.AppendMaintenanceRun(ctx, run); err != nil {
		log.Printf("engine: maintenance log append failed for run %s: %v", run.RunID, err)
	}
	log.Printf("engine: maintenance run %s finished: archived=%d decayed=%d consolidated=%d errors=%d",
		run.RunID, run.Archived, run.Decayed, run.Consolidated, len(run.Errors))

	if d.notifier != nil {
		d.notifier.MaintenanceCompleted(run)
	}
	return run
}

// consolidate merges near-duplicate pairs group by group. A failure inside
// one group is logged and the remaining groups still run; the count of
// merges performed so far is returned either way.
func (d *DecayEngine) consolidate(ctx context.Context) (int, error) {
	groups, err := d.store.EmbeddedGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("list embedded groups: %w", err)
	}

	merged := 0
	for _, g := range groups {
		n, err := d.consolidateGroup(ctx, g)
		merged += n
		if err != nil {
			log.Printf("engine: consolidation failed for %s/%s: %v", g.AgentID, g.Category, err)
		}
	}
	return merged, nil
}

func (d *DecayEngine) consolidateGroup(ctx context.Context, g storage.AgentCategory) (int, error) {
	entries, err := d.store.EmbeddedActive(ctx, g.AgentID, g.Category)
	if err != nil {
		return 0, fmt.Errorf("load group: %w", err)
	}
	if len(entries) < 2 {
		return 0, nil
	}

	archived := make(map[int64]bool, len(entries))
	merged := 0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if archived[a.ID] || archived[b.ID] {
				continue
			}
			sim := vector.Similarity(vector.Cosine(a.Embedding, b.Embedding))
			if sim <= d.consolidationThreshold {
				continue
			}

			keeper, loser := pickKeeper(a, b)
			if err := d.mergePair(ctx, keeper, loser, sim); err != nil {
				log.Printf("engine: merge of %d into %d failed: %v", loser.ID, keeper.ID, err)
				continue
			}
			archived[loser.ID] = true
			merged++
		}
	}
	return merged, nil
}

// pickKeeper keeps the entry with the higher access count; ties keep the
// older entry.
func pickKeeper(a, b *types.MemoryEntry) (keeper, loser *types.MemoryEntry) {
	if a.AccessCount != b.AccessCount {
		if a.AccessCount > b.AccessCount {
			return a, b
		}
		return b, a
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return b, a
	}
	return a, b
}

// mergePair archives loser under keeper and folds its access count into the
// keeper. The two writes are independently idempotent; a crash between them
// at worst under-counts the keeper's accesses until the next pass.
func (d *DecayEngine) mergePair(ctx context.Context, keeper, loser *types.MemoryEntry, sim float64) error {
	if err := d.store.UpdateStatus(ctx, loser.ID, types.StatusArchived, &keeper.ID); err != nil {
		return fmt.Errorf("archive loser: %w", err)
	}
	if loser.AccessCount > 0 {
		if err := d.store.MergeAccessCount(ctx, keeper.ID, loser.AccessCount); err != nil {
			return fmt.Errorf("merge access count: %w", err)
		}
	}
	rec := &types.ConflictRecord{
		WinnerID:   &keeper.ID,
		LoserID:    loser.ID,
		Similarity: &sim,
		Resolution: types.ResolutionConsolidated,
		Reason:     "near-duplicate merged during maintenance",
	}
	if err := d.store.AppendConflict(ctx, rec); err != nil {
		log.Printf("engine: conflict audit append failed: %v", err)
	}
	return nil
}
