package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mnemo/internal/cluster"
	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Memory: testMemoryConfig(),
		Decay: config.DecayConfig{
			StaleZeroAccessDays: 90,
			StaleLowAccessDays:  180,
			LowAccessThreshold:  3,
			HighAgeDays:         60,
			HighIdleDays:        30,
			MediumAgeDays:       120,
			MediumIdleDays:      60,
			StaleAfterDays:      90,
		},
	}
}

func newTestEngine(t *testing.T, registry *cluster.Registry) (*Engine, storage.Store) {
	t.Helper()
	store := newTestDB(t)
	eng := New(store, NewEmbedder(nil, 0), nil, registry, testConfig(), nil)
	return eng, store
}

func TestEngineStore_ValidatesInput(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := eng.Store(ctx, &StoreRequest{Content: "fact"})
	assert.ErrorIs(t, err, types.ErrMissingAgent)

	_, err = eng.Store(ctx, &StoreRequest{AgentID: "x", Content: "fact", Importance: "urgent"})
	assert.ErrorIs(t, err, types.ErrInvalidImportance)
}

func TestEngineStore_ExtractsKeywordsWhenMissing(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	ctx := context.Background()

	result, err := eng.Store(ctx, &StoreRequest{
		AgentID: "x",
		Content: "quarterly budget review moved to friday",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, result.Action)

	entry, err := store.Get(ctx, result.EntryID)
	require.NoError(t, err)
	assert.Contains(t, entry.Keywords, "budget")
	assert.Contains(t, entry.Keywords, "friday")
}

func TestEngineStore_KeepsCallerKeywords(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	ctx := context.Background()

	result, err := eng.Store(ctx, &StoreRequest{
		AgentID:  "x",
		Content:  "quarterly budget review moved to friday",
		Keywords: []string{"budget"},
	})
	require.NoError(t, err)

	entry, err := store.Get(ctx, result.EntryID)
	require.NoError(t, err)
	assert.Equal(t, []string{"budget"}, entry.Keywords)
}

func TestEngineStore_AutoBroadcastCategory(t *testing.T) {
	registry := cluster.NewRegistry(cluster.FileConfig{
		Clusters:      []cluster.Cluster{{Name: "home", Agents: []string{"x", "w"}}},
		AutoBroadcast: map[string][]string{"x": {"schedule"}},
	})
	eng, store := newTestEngine(t, registry)
	ctx := context.Background()

	result, err := eng.Store(ctx, &StoreRequest{
		AgentID:  "x",
		Category: "schedule",
		Content:  "dentist appointment thursday",
	})
	require.NoError(t, err)

	entry, err := store.Get(ctx, result.EntryID)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityBroadcast, entry.Visibility)

	// Other categories keep the default visibility.
	result, err = eng.Store(ctx, &StoreRequest{
		AgentID:  "x",
		Category: "financial",
		Content:  "rent is due on the first",
	})
	require.NoError(t, err)

	entry, err = store.Get(ctx, result.EntryID)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityPrivate, entry.Visibility)
}

func TestEngineGet_NotFound(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	_, err := eng.Get(context.Background(), 999)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestEngineHealth(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := eng.Store(ctx, &StoreRequest{AgentID: "x", Content: "one fact"})
	require.NoError(t, err)

	report, err := eng.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalEntries)
	assert.Equal(t, 1, report.ByStatus[types.StatusActive])
}

func TestEngineRunMaintenance_RecordsRun(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()

	run := eng.RunMaintenance(ctx)
	require.NotNil(t, run)

	history, err := eng.MaintenanceHistory(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, run.RunID, history[0].RunID)
}
