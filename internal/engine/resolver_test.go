package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mnemo/internal/llm"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/internal/storage/sqlite"
	"github.com/scrypster/mnemo/pkg/types"
)

func newTestDB(t *testing.T) storage.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// scriptedGenerator always answers with one canned response.
type scriptedGenerator struct {
	response string
	err      error
	calls    int
}

func (g *scriptedGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return g.response, g.err
}

func (g *scriptedGenerator) GetModel() string { return "scripted" }

func newTestResolver(store storage.Store, gen llm.TextGenerator) *Resolver {
	var judge *llm.Judge
	if gen != nil {
		judge = llm.NewJudge(gen)
	}
	return NewResolver(store, judge, 0.90, 0.70)
}

func activeEntry(agent, category, content string, vec []float32) *types.MemoryEntry {
	e := &types.MemoryEntry{
		AgentID:   agent,
		Category:  category,
		Content:   content,
		Embedding: vec,
	}
	e.Normalize()
	return e
}

func TestResolve_NoNeighborInserts(t *testing.T) {
	store := newTestDB(t)
	r := newTestResolver(store, nil)

	res, err := r.Resolve(context.Background(), activeEntry("x", "schedule", "first fact", []float32{1, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, res.Action)
	assert.Greater(t, res.EntryID, int64(0))
	assert.Nil(t, res.Similarity)
}

func TestResolve_NearDuplicateSkips(t *testing.T) {
	store := newTestDB(t)
	r := newTestResolver(store, nil)
	ctx := context.Background()

	// Two synthetic vectors with cosine similarity ~0.95.
	first, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting at nine", []float32{1, 0.33, 0}))
	require.NoError(t, err)

	second, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting at 9am", []float32{1, 0, 0}))
	require.NoError(t, err)

	assert.Equal(t, ActionSkipped, second.Action)
	assert.Equal(t, first.EntryID, second.EntryID)
	require.NotNil(t, second.Similarity)
	assert.Greater(t, *second.Similarity, 0.90)

	// The skipped content was never written.
	entries, err := store.ListActive(ctx, "x", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResolve_BelowArbitrationInserts(t *testing.T) {
	store := newTestDB(t)
	gen := &scriptedGenerator{response: "DUPLICATE"}
	r := newTestResolver(store, gen)
	ctx := context.Background()

	_, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting fact", []float32{1, 0, 0}))
	require.NoError(t, err)

	res, err := r.Resolve(ctx, activeEntry("x", "schedule", "unrelated fact", []float32{0.3, 1, 0}))
	require.NoError(t, err)

	assert.Equal(t, ActionInserted, res.Action)
	assert.Zero(t, gen.calls, "judge must not be consulted below the arbitration threshold")
}

func TestResolve_JudgeNewWinsArchivesOld(t *testing.T) {
	store := newTestDB(t)
	r := newTestResolver(store, &scriptedGenerator{response: "CONTRADICTION_NEW_WINS"})
	ctx := context.Background()

	// Similarity ~0.86: inside the arbitration band.
	first, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting is monday", []float32{1, 0.6, 0}))
	require.NoError(t, err)

	second, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting moved to tuesday", []float32{1, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, ActionReplaced, second.Action)

	old, err := store.Get(ctx, first.EntryID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusContradicted, old.Status)
	require.NotNil(t, old.SupersededBy)
	assert.Equal(t, second.EntryID, *old.SupersededBy)

	records, err := store.ListConflicts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.ResolutionSuperseded, records[0].Resolution)
	assert.Equal(t, first.EntryID, records[0].LoserID)
	require.NotNil(t, records[0].WinnerID)
	assert.Equal(t, second.EntryID, *records[0].WinnerID)
}

func TestResolve_JudgeOldWinsSkips(t *testing.T) {
	store := newTestDB(t)
	r := newTestResolver(store, &scriptedGenerator{response: "CONTRADICTION_OLD_WINS"})
	ctx := context.Background()

	first, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting is monday", []float32{1, 0.6, 0}))
	require.NoError(t, err)

	second, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting is sunday", []float32{1, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, second.Action)
	assert.Equal(t, first.EntryID, second.EntryID)

	old, err := store.Get(ctx, first.EntryID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, old.Status)
}

func TestResolve_JudgeCompatibleInsertsBoth(t *testing.T) {
	store := newTestDB(t)
	r := newTestResolver(store, &scriptedGenerator{response: "COMPATIBLE"})
	ctx := context.Background()

	_, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting is monday", []float32{1, 0.6, 0}))
	require.NoError(t, err)

	res, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting room is 4b", []float32{1, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, res.Action)

	entries, err := store.ListActive(ctx, "x", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestResolve_JudgeFailureDefaultsToInsert(t *testing.T) {
	store := newTestDB(t)
	r := newTestResolver(store, &scriptedGenerator{err: errors.New("judge offline")})
	ctx := context.Background()

	_, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting is monday", []float32{1, 0.6, 0}))
	require.NoError(t, err)

	res, err := r.Resolve(ctx, activeEntry("x", "schedule", "meeting is tuesday", []float32{1, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, res.Action)
	assert.Equal(t, llm.VerdictUnknown, res.Verdict)

	entries, err := store.ListActive(ctx, "x", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestResolve_NoEmbeddingAlwaysInserts(t *testing.T) {
	store := newTestDB(t)
	r := newTestResolver(store, nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, activeEntry("x", "schedule", "same fact", nil))
	require.NoError(t, err)
	second, err := r.Resolve(ctx, activeEntry("x", "schedule", "same fact", nil))
	require.NoError(t, err)

	assert.Equal(t, ActionInserted, first.Action)
	assert.Equal(t, ActionInserted, second.Action)
	assert.NotEqual(t, first.EntryID, second.EntryID)
}

func TestResolve_DifferentCategoryNotCompared(t *testing.T) {
	store := newTestDB(t)
	r := newTestResolver(store, nil)
	ctx := context.Background()

	_, err := r.Resolve(ctx, activeEntry("x", "schedule", "fact a", []float32{1, 0, 0}))
	require.NoError(t, err)

	res, err := r.Resolve(ctx, activeEntry("x", "financial", "fact b", []float32{1, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, res.Action)
}
