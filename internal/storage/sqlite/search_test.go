package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mnemo/pkg/types"
)

func TestKeywordCandidates_MatchesTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	match := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "budget review friday",
		Keywords: []string{"budget", "review", "friday"},
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "lunch order",
		Keywords:  []string{"lunch"},
		CreatedAt: time.Now().UTC().AddDate(0, 0, -60),
	})

	entries, err := s.KeywordCandidates(ctx, "alpha", []string{"budget"}, 30, 30)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, match, entries[0].ID)
}

func TestKeywordCandidates_IncludesRecentImportant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recentCritical := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "passport expires soon",
		Keywords:   []string{"passport"},
		Importance: types.ImportanceCritical,
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "old high fact",
		Keywords:   []string{"archive"},
		Importance: types.ImportanceHigh,
		CreatedAt:  time.Now().UTC().AddDate(0, 0, -90),
	})

	// No token overlap: only the recent high/critical shortcut applies.
	entries, err := s.KeywordCandidates(ctx, "alpha", []string{"unrelated"}, 30, 30)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, recentCritical, entries[0].ID)
}

func TestKeywordCandidates_CapPrefersHigherOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	twoTokens := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "older two token fact",
		Keywords:  []string{"budget", "review"},
		CreatedAt: time.Now().UTC().AddDate(0, 0, -10),
	})
	for i := 0; i < 2; i++ {
		storeEntry(t, s, &types.MemoryEntry{
			AgentID: "alpha", Content: "newer single token fact",
			Keywords: []string{"budget"},
		})
	}

	// The cap ranks by overlap, so the older two-token match survives a
	// pool smaller than the match set.
	entries, err := s.KeywordCandidates(ctx, "alpha", []string{"budget", "review"}, 30, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, twoTokens, entries[0].ID)
}

func TestKeywordCandidates_ExcludesArchived(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "budget fact",
		Keywords: []string{"budget"},
	})
	require.NoError(t, s.UpdateStatus(ctx, id, types.StatusArchived, nil))

	entries, err := s.KeywordCandidates(ctx, "alpha", []string{"budget"}, 30, 30)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSemanticCandidates_RanksBySimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	near := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "near", Embedding: []float32{1, 0, 0},
	})
	far := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "far", Embedding: []float32{0, 1, 0},
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "no embedding",
	})

	scored, err := s.SemanticCandidates(ctx, "alpha", []float32{0.9, 0.1, 0}, 20)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, near, scored[0].Entry.ID)
	assert.Equal(t, far, scored[1].Entry.ID)
	assert.Greater(t, scored[0].Similarity, scored[1].Similarity)
}

func TestSemanticCandidates_EmptyVector(t *testing.T) {
	s := newTestStore(t)
	scored, err := s.SemanticCandidates(context.Background(), "alpha", nil, 20)
	require.NoError(t, err)
	assert.Nil(t, scored)
}

func TestNearestNeighbor_ScopedToAgentAndCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sameGroup := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Category: "schedule", Content: "same group",
		Embedding: []float32{1, 0},
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Category: "financial", Content: "other category",
		Embedding: []float32{1, 0},
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "beta", Category: "schedule", Content: "other agent",
		Embedding: []float32{1, 0},
	})

	nn, err := s.NearestNeighbor(ctx, "alpha", "schedule", []float32{1, 0})
	require.NoError(t, err)
	require.NotNil(t, nn)
	assert.Equal(t, sameGroup, nn.Entry.ID)
	assert.InDelta(t, 1.0, nn.Similarity, 1e-6)
}

func TestNearestNeighbor_EmptyComparisonSet(t *testing.T) {
	s := newTestStore(t)
	nn, err := s.NearestNeighbor(context.Background(), "alpha", "schedule", []float32{1, 0})
	require.NoError(t, err)
	assert.Nil(t, nn)
}

func TestPeerCandidates_VisibilityAndMatching(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	broadcast := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "peer", Content: "shared schedule fact",
		Keywords:   []string{"schedule"},
		Visibility: types.VisibilityBroadcast,
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "peer", Content: "private fact",
		Keywords:   []string{"schedule"},
		Visibility: types.VisibilityPrivate,
	})
	critical := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "peer", Content: "critical shared fact",
		Keywords:   []string{"unrelated"},
		Importance: types.ImportanceCritical,
		Visibility: types.VisibilityShared,
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "stranger", Content: "not a peer",
		Keywords:   []string{"schedule"},
		Visibility: types.VisibilityBroadcast,
	})

	entries, err := s.PeerCandidates(ctx, []string{"peer"}, []string{"schedule"}, 5)
	require.NoError(t, err)

	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []int64{broadcast, critical}, ids)
}

func TestPeerCandidates_NoPeers(t *testing.T) {
	s := newTestStore(t)
	entries, err := s.PeerCandidates(context.Background(), nil, []string{"schedule"}, 5)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestEmbeddedGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Category: "schedule", Content: "a", Embedding: []float32{1, 0},
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Category: "schedule", Content: "b", Embedding: []float32{0, 1},
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "beta", Category: "financial", Content: "c", Embedding: []float32{1, 1},
	})
	storeEntry(t, s, &types.MemoryEntry{
		AgentID: "gamma", Category: "misc", Content: "no embedding",
	})

	groups, err := s.EmbeddedGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "alpha", groups[0].AgentID)
	assert.Equal(t, "schedule", groups[0].Category)
	assert.Equal(t, "beta", groups[1].AgentID)
}
