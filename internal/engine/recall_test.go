package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mnemo/internal/cluster"
	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

func testMemoryConfig() config.MemoryConfig {
	return config.MemoryConfig{
		DuplicateThreshold:     0.90,
		ArbitrationThreshold:   0.70,
		ConsolidationThreshold: 0.92,
		RecallLimit:            8,
		RecentImportantDays:    30,
		LexicalPool:            30,
		SemanticPool:           20,
		PeerLimit:              5,
		MaxQueryTokens:         30,
	}
}

// fixedEmbedder returns one canned vector for every text.
type fixedEmbedder struct {
	vec []float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func (f *fixedEmbedder) GetModel() string { return "fixed" }

func mustStore(t *testing.T, s storage.Store, entry *types.MemoryEntry) int64 {
	t.Helper()
	entry.Normalize()
	id, err := s.Store(context.Background(), entry)
	require.NoError(t, err)
	return id
}

func TestRecall_RequiresAgent(t *testing.T) {
	e := NewRecallEngine(newTestDB(t), NewEmbedder(nil, 0), nil, testMemoryConfig())
	_, err := e.Recall(context.Background(), "", "query", 5)
	assert.ErrorIs(t, err, types.ErrMissingAgent)
}

func TestRecall_LexicalOnlyNeverRaisesAndSemanticIsZero(t *testing.T) {
	store := newTestDB(t)
	e := NewRecallEngine(store, NewEmbedder(nil, 0), nil, testMemoryConfig())
	ctx := context.Background()

	mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "budget review friday",
		Keywords: []string{"budget", "review", "friday"},
	})

	results, err := e.Recall(ctx, "x", "budget review", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].SemanticScored)
	assert.Zero(t, results[0].Semantic)
	assert.Greater(t, results[0].Lexical, 0.0)
}

func TestRecall_ExcludesArchivedEntries(t *testing.T) {
	store := newTestDB(t)
	e := NewRecallEngine(store, NewEmbedder(nil, 0), nil, testMemoryConfig())
	ctx := context.Background()

	keep := mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "budget fact", Keywords: []string{"budget"},
	})
	archived := mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "old budget fact", Keywords: []string{"budget"},
	})
	require.NoError(t, store.UpdateStatus(ctx, archived, types.StatusArchived, nil))

	results, err := e.Recall(ctx, "x", "budget", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, keep, results[0].Entry.ID)
}

func TestRecall_EmptyQueryFallsBackToListActive(t *testing.T) {
	store := newTestDB(t)
	e := NewRecallEngine(store, NewEmbedder(nil, 0), nil, testMemoryConfig())
	ctx := context.Background()

	critical := mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "critical fact", Importance: types.ImportanceCritical,
	})
	mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "low fact", Importance: types.ImportanceLow,
	})

	results, err := e.Recall(ctx, "x", "", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, critical, results[0].Entry.ID)
}

func TestRecall_LexicalNormalizedByBestOverlap(t *testing.T) {
	store := newTestDB(t)
	e := NewRecallEngine(store, NewEmbedder(nil, 0), nil, testMemoryConfig())
	ctx := context.Background()

	best := mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "alpha beta fact",
		Keywords: []string{"alpha", "beta"},
	})
	mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "alpha only fact",
		Keywords: []string{"alpha"},
	})

	// Only 2 of 5 query tokens can match anything; the best match still
	// gets the full lexical sub-score.
	results, err := e.Recall(ctx, "x", "alpha beta gamma delta epsilon", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, best, results[0].Entry.ID)
	assert.InDelta(t, 1.0, results[0].Lexical, 1e-9)
	assert.InDelta(t, 0.5, results[1].Lexical, 1e-9)
}

func TestRecall_StopWordQueryUsesImportanceOrdering(t *testing.T) {
	store := newTestDB(t)
	embedder := NewEmbedder(&fixedEmbedder{vec: []float32{1, 0, 0}}, 0)
	e := NewRecallEngine(store, embedder, nil, testMemoryConfig())
	ctx := context.Background()

	critical := mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "critical orthogonal fact",
		Importance: types.ImportanceCritical,
		Embedding:  []float32{0, 1, 0},
	})
	mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "low matching fact",
		Importance: types.ImportanceLow,
		Embedding:  []float32{1, 0, 0},
	})

	// Every query word is a stop word, so even with an embedder configured
	// the shortlist is importance-then-recency, not vector similarity.
	results, err := e.Recall(ctx, "x", "the and for it", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, critical, results[0].Entry.ID)
	assert.False(t, results[0].SemanticScored)
}

func TestRecall_SemanticBoostsMatchingEntry(t *testing.T) {
	store := newTestDB(t)
	embedder := NewEmbedder(&fixedEmbedder{vec: []float32{1, 0, 0}}, 0)
	e := NewRecallEngine(store, embedder, nil, testMemoryConfig())
	ctx := context.Background()

	near := mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "vector near fact",
		Keywords:  []string{"delivery"},
		Embedding: []float32{1, 0, 0},
	})
	mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "vector far fact",
		Keywords:  []string{"delivery"},
		Embedding: []float32{0, 1, 0},
	})

	results, err := e.Recall(ctx, "x", "delivery", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near, results[0].Entry.ID)
	assert.True(t, results[0].SemanticScored)
	assert.InDelta(t, 1.0, results[0].Semantic, 1e-6)
}

func TestRecall_RespectsLimit(t *testing.T) {
	store := newTestDB(t)
	e := NewRecallEngine(store, NewEmbedder(nil, 0), nil, testMemoryConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustStore(t, store, &types.MemoryEntry{
			AgentID: "x", Content: "numbered budget fact",
			Keywords: []string{"budget"},
		})
	}

	results, err := e.Recall(ctx, "x", "budget", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRecall_PeerBroadcastSurfaces(t *testing.T) {
	store := newTestDB(t)
	registry := cluster.NewRegistry(cluster.FileConfig{
		Clusters: []cluster.Cluster{{Name: "home", Agents: []string{"z", "w"}}},
	})
	e := NewRecallEngine(store, NewEmbedder(nil, 0), registry, testMemoryConfig())
	ctx := context.Background()

	peerEntry := mustStore(t, store, &types.MemoryEntry{
		AgentID: "w", Content: "dentist appointment thursday",
		Keywords:   []string{"dentist", "thursday"},
		Visibility: types.VisibilityBroadcast,
	})

	results, err := e.Recall(ctx, "z", "dentist", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, peerEntry, results[0].Entry.ID)
	assert.True(t, results[0].FromPeer)
}

func TestRecall_PeerPrivateEntriesStayHidden(t *testing.T) {
	store := newTestDB(t)
	registry := cluster.NewRegistry(cluster.FileConfig{
		Clusters: []cluster.Cluster{{Name: "home", Agents: []string{"z", "w"}}},
	})
	e := NewRecallEngine(store, NewEmbedder(nil, 0), registry, testMemoryConfig())
	ctx := context.Background()

	mustStore(t, store, &types.MemoryEntry{
		AgentID: "w", Content: "private dentist note",
		Keywords:   []string{"dentist"},
		Visibility: types.VisibilityPrivate,
	})

	results, err := e.Recall(ctx, "z", "dentist", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecall_TracksAccess(t *testing.T) {
	store := newTestDB(t)
	e := NewRecallEngine(store, NewEmbedder(nil, 0), nil, testMemoryConfig())
	ctx := context.Background()

	id := mustStore(t, store, &types.MemoryEntry{
		AgentID: "x", Content: "budget fact", Keywords: []string{"budget"},
	})

	results, err := e.Recall(ctx, "x", "budget", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	e.Flush()

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AccessCount)
	assert.NotNil(t, got.LastAccessedAt)
}

func TestScoreEntry_BlendsComponents(t *testing.T) {
	e := NewRecallEngine(newTestDB(t), NewEmbedder(nil, 0), nil, testMemoryConfig())

	entry := &types.MemoryEntry{
		Keywords:   []string{"budget", "review"},
		Importance: types.ImportanceCritical,
		CreatedAt:  time.Now(),
	}
	r := e.scoreEntry(entry, 1.0, semanticScore{Scored: true, Value: 1.0}, false)

	// Fresh entry, full lexical and semantic match, critical importance:
	// 0.4*1 + 0.3*1 + 0.2*~1 + 0.1*1.
	assert.InDelta(t, 1.0, r.Score, 0.01)
	assert.Equal(t, 1.0, r.Lexical)
}
