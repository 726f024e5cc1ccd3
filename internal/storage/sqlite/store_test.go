package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storeEntry(t *testing.T, s *Store, entry *types.MemoryEntry) int64 {
	t.Helper()
	id, err := s.Store(context.Background(), entry)
	require.NoError(t, err)
	return id
}

func TestStoreAndGet_Roundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	last := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	entry := &types.MemoryEntry{
		AgentID:        "alpha",
		Content:        "user prefers morning meetings",
		Category:       "schedule",
		Keywords:       []string{"meetings", "morning"},
		Importance:     types.ImportanceHigh,
		Embedding:      []float32{0.1, 0.2, 0.3},
		Visibility:     types.VisibilityShared,
		AccessCount:    2,
		LastAccessedAt: &last,
	}
	id := storeEntry(t, s, entry)
	require.Greater(t, id, int64(0))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.AgentID)
	assert.Equal(t, "user prefers morning meetings", got.Content)
	assert.Equal(t, "schedule", got.Category)
	assert.Equal(t, []string{"meetings", "morning"}, got.Keywords)
	assert.Equal(t, types.ImportanceHigh, got.Importance)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embedding)
	assert.Equal(t, types.StatusActive, got.Status)
	assert.Equal(t, types.VisibilityShared, got.Visibility)
	assert.Equal(t, 2, got.AccessCount)
	require.NotNil(t, got.LastAccessedAt)
	assert.Equal(t, "alpha", got.SourceAgent)
}

func TestStore_RejectsInvalidEntry(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Store(context.Background(), &types.MemoryEntry{AgentID: "alpha"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = s.Store(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 12345)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListActive_OrdersByImportanceThenRecency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	lowID := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "low fact", Importance: types.ImportanceLow,
		CreatedAt: now.Add(-time.Minute),
	})
	criticalID := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "critical fact", Importance: types.ImportanceCritical,
		CreatedAt: now.Add(-2 * time.Hour),
	})
	highID := storeEntry(t, s, &types.MemoryEntry{
		AgentID: "alpha", Content: "high fact", Importance: types.ImportanceHigh,
		CreatedAt: now,
	})

	entries, err := s.ListActive(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, criticalID, entries[0].ID)
	assert.Equal(t, highID, entries[1].ID)
	assert.Equal(t, lowID, entries[2].ID)
}

func TestListActive_ExcludesOtherAgentsAndArchived(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	keep := storeEntry(t, s, &types.MemoryEntry{AgentID: "alpha", Content: "keep"})
	archived := storeEntry(t, s, &types.MemoryEntry{AgentID: "alpha", Content: "archived"})
	storeEntry(t, s, &types.MemoryEntry{AgentID: "beta", Content: "other agent"})

	require.NoError(t, s.UpdateStatus(ctx, archived, types.StatusArchived, nil))

	entries, err := s.ListActive(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, keep, entries[0].ID)
}

func TestUpdateStatus_SetsAndPreservesSupersededBy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	oldID := storeEntry(t, s, &types.MemoryEntry{AgentID: "alpha", Content: "old fact"})
	firstWinner := storeEntry(t, s, &types.MemoryEntry{AgentID: "alpha", Content: "first replacement"})
	secondWinner := storeEntry(t, s, &types.MemoryEntry{AgentID: "alpha", Content: "second replacement"})

	require.NoError(t, s.UpdateStatus(ctx, oldID, types.StatusContradicted, &firstWinner))

	got, err := s.Get(ctx, oldID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusContradicted, got.Status)
	require.NotNil(t, got.SupersededBy)
	assert.Equal(t, firstWinner, *got.SupersededBy)

	// A later status change must not clear or replace the back-reference.
	require.NoError(t, s.UpdateStatus(ctx, oldID, types.StatusArchived, &secondWinner))
	got, err = s.Get(ctx, oldID)
	require.NoError(t, err)
	require.NotNil(t, got.SupersededBy)
	assert.Equal(t, firstWinner, *got.SupersededBy)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateStatus(context.Background(), 999, types.StatusArchived, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIncrementAccess_BumpsCountAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := storeEntry(t, s, &types.MemoryEntry{AgentID: "alpha", Content: "fact a"})
	b := storeEntry(t, s, &types.MemoryEntry{AgentID: "alpha", Content: "fact b"})

	require.NoError(t, s.IncrementAccess(ctx, []int64{a, b, 999}))
	require.NoError(t, s.IncrementAccess(ctx, []int64{a}))

	gotA, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, gotA.AccessCount)
	assert.NotNil(t, gotA.LastAccessedAt)

	gotB, err := s.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, gotB.AccessCount)
}

func TestSetImportance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := storeEntry(t, s, &types.MemoryEntry{AgentID: "alpha", Content: "fact", Importance: types.ImportanceHigh})
	require.NoError(t, s.SetImportance(ctx, id, types.ImportanceLow))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.ImportanceLow, got.Importance)
}

func TestVectorCodec_Roundtrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3.75, 0}
	decoded := decodeVector(encodeVector(vec))
	assert.Equal(t, vec, decoded)

	assert.Nil(t, encodeVector(nil))
	assert.Nil(t, decodeVector(nil))
	assert.Nil(t, decodeVector([]byte{1, 2, 3}))
}
