package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/storage"
)

func TestRunStore_InsertGetLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	_, err := store.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first := &domain.RunRecord{
		RunID:           "run-a",
		StartedAt:       started,
		FinishedAt:      started.Add(2 * time.Second),
		Status:          domain.RunStatusSucceeded,
		SalesTable:      "sales",
		CompetitorTable: "comp_prices",
		RawSalesRows:    10,
		RawCompRows:     20,
		FeatureRows:     5,
		NonFiniteCells:  1,
	}
	second := &domain.RunRecord{
		RunID:      "run-b",
		StartedAt:  started.Add(time.Hour),
		FinishedAt: started.Add(time.Hour),
		Status:     domain.RunStatusFailed,
		Error:      "missing column: revenue",
	}
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	got, err := store.GetByID(ctx, "run-a")
	require.NoError(t, err)
	assert.True(t, first.StartedAt.Equal(got.StartedAt))
	assert.True(t, first.FinishedAt.Equal(got.FinishedAt))
	got.StartedAt, got.FinishedAt = first.StartedAt, first.FinishedAt
	assert.Equal(t, first, got)

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-b", latest.RunID)
	assert.Equal(t, domain.RunStatusFailed, latest.Status)

	assert.ErrorIs(t, store.Insert(ctx, first), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
