// Package engine implements the memory subsystem's core behavior: conflict
// resolved writes, hybrid recall, the decay/consolidation pass, and health
// reporting. It sits between the HTTP/CLI surfaces and the storage layer
// and owns every tuning value that shapes how memories live and die.
package engine

import (
	"context"
	"fmt"

	"github.com/scrypster/mnemo/internal/cluster"
	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/internal/llm"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// StoreRequest carries one fact to remember.
type StoreRequest struct {
	AgentID    string           `json:"agent_id"`
	Category   string           `json:"category"`
	Content    string           `json:"content"`
	Keywords   []string         `json:"keywords,omitempty"`
	Importance types.Importance `json:"importance,omitempty"`
	Visibility types.Visibility `json:"visibility,omitempty"`
}

// StoreResult reports what happened to a stored fact. EntryID is the new
// row on insert/replace and the surviving existing row on skip.
type StoreResult struct {
	EntryID    int64    `json:"entry_id"`
	Action     Action   `json:"action"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// Engine is the facade the server and CLI operate against.
type Engine struct {
	store    storage.Store
	embedder *Embedder
	resolver *Resolver
	recall   *RecallEngine
	decay    *DecayEngine
	health   *HealthReporter
	clusters *cluster.Registry
}

// New wires an engine from its collaborators. judge and notifier may be
// nil; clusters may be nil to disable peer features.
func New(store storage.Store, embedder *Embedder, judge *llm.Judge, clusters *cluster.Registry, cfg *config.Config, notifier MaintenanceNotifier) *Engine {
	params := storage.DecayParams{
		StaleZeroAccessDays: cfg.Decay.StaleZeroAccessDays,
		StaleLowAccessDays:  cfg.Decay.StaleLowAccessDays,
		LowAccessThreshold:  cfg.Decay.LowAccessThreshold,
		HighAgeDays:         cfg.Decay.HighAgeDays,
		HighIdleDays:        cfg.Decay.HighIdleDays,
		MediumAgeDays:       cfg.Decay.MediumAgeDays,
		MediumIdleDays:      cfg.Decay.MediumIdleDays,
	}

	return &Engine{
		store:    store,
		embedder: embedder,
		resolver: NewResolver(store, judge, cfg.Memory.DuplicateThreshold, cfg.Memory.ArbitrationThreshold),
		recall:   NewRecallEngine(store, embedder, clusters, cfg.Memory),
		decay:    NewDecayEngine(store, embedder, params, cfg.Memory.ConsolidationThreshold, notifier),
		health:   NewHealthReporter(store, cfg.Decay.StaleAfterDays),
		clusters: clusters,
	}
}

// Store remembers one fact, running it through conflict resolution first.
// Keywords are extracted from the content when the caller supplies none,
// and categories configured for auto-broadcast force broadcast visibility.
func (e *Engine) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	entry := &types.MemoryEntry{
		AgentID:    req.AgentID,
		Category:   req.Category,
		Content:    req.Content,
		Keywords:   req.Keywords,
		Importance: req.Importance,
		Visibility: req.Visibility,
	}
	entry.Normalize()
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if len(entry.Keywords) == 0 {
		entry.Keywords = ExtractTokens(entry.Content, 30)
	}
	if e.clusters != nil && e.clusters.AutoBroadcasts(entry.AgentID, entry.Category) {
		entry.Visibility = types.VisibilityBroadcast
	}

	entry.Embedding = e.embedder.Embed(ctx, entry.Content)

	res, err := e.resolver.Resolve(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &StoreResult{EntryID: res.EntryID, Action: res.Action, Similarity: res.Similarity}, nil
}

// Recall ranks the agent's active memories against query. It never fails
// because of an absent or failing embedding provider.
func (e *Engine) Recall(ctx context.Context, agentID, query string, limit int) ([]RecalledEntry, error) {
	return e.recall.Recall(ctx, agentID, query, limit)
}

// Get retrieves one entry by ID.
func (e *Engine) Get(ctx context.Context, id int64) (*types.MemoryEntry, error) {
	return e.store.Get(ctx, id)
}

// RunMaintenance executes one decay/consolidation pass.
func (e *Engine) RunMaintenance(ctx context.Context) *types.MaintenanceRun {
	return e.decay.Run(ctx)
}

// MaintenanceHistory returns recent maintenance runs, newest first.
func (e *Engine) MaintenanceHistory(ctx context.Context, limit int) ([]types.MaintenanceRun, error) {
	return e.store.ListMaintenanceRuns(ctx, limit)
}

// Conflicts returns recent conflict audit records, newest first.
func (e *Engine) Conflicts(ctx context.Context, limit int) ([]types.ConflictRecord, error) {
	return e.store.ListConflicts(ctx, limit)
}

// Health aggregates the operational snapshot of the store.
func (e *Engine) Health(ctx context.Context) (*types.HealthReport, error) {
	return e.health.Report(ctx)
}

// Close flushes background work and releases the store.
func (e *Engine) Close() error {
	e.recall.Flush()
	return e.store.Close()
}
