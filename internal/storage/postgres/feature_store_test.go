package postgres

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/storage"
)

func testFeatureRows() []domain.FeatureRow {
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	return []domain.FeatureRow{
		{ProdID: "p2", Date: d1, Price: 5, QtyOrder: 1, Min: 4, Max: 6, Mean: 5, Median: 5, QtyDayShift: 2, DiffMinPct: 0.25, DiffMeanPct: 0},
		{ProdID: "p1", Date: d2, Price: 11, QtyOrder: 4, Min: 0, Max: 13, Mean: 12, Median: 12, QtyDayShift: 2,
			DiffMinPct: math.Inf(1), DiffMeanPct: -1.0 / 12, QtyOrderLog: ptr(math.Log(4))},
		{ProdID: "p1", Date: d1, Price: 10, QtyOrder: 2, Min: 9, Max: 9, Mean: 9, Median: 9, QtyDayShift: 1, DiffMinPct: 1.0 / 9, DiffMeanPct: 1.0 / 9},
	}
}

func TestFeatureStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeatureStore(pool)

	require.NoError(t, store.InsertBulk(ctx, "run-1", testFeatureRows()))

	rows, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "p1", rows[0].ProdID)
	assert.Equal(t, 10.0, rows[0].Price)
	assert.Nil(t, rows[0].QtyOrderLog)
	assert.True(t, math.IsInf(rows[1].DiffMinPct, 1), "Infinity should round-trip")
	require.NotNil(t, rows[1].QtyOrderLog)
	assert.InDelta(t, math.Log(4), *rows[1].QtyOrderLog, 1e-12)
	assert.Equal(t, "p2", rows[2].ProdID)
	assert.True(t, rows[2].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))

	p1, err := store.GetByProduct(ctx, "run-1", "p1")
	require.NoError(t, err)
	require.Len(t, p1, 2)
	assert.True(t, p1[0].Date.Before(p1[1].Date))
}

func TestFeatureStore_DuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeatureStore(pool)
	rows := testFeatureRows()

	err := store.InsertBulk(ctx, "run-dup", append(rows, rows[0]))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByRunID(ctx, "run-dup")
	require.NoError(t, err)
	assert.Empty(t, got, "failed batch must not leave rows behind")

	require.NoError(t, store.InsertBulk(ctx, "run-dup", rows))
	assert.ErrorIs(t, store.InsertBulk(ctx, "run-dup", rows[:1]), storage.ErrDuplicateKey)

	// Same rows under another run are fine.
	require.NoError(t, store.InsertBulk(ctx, "run-other", rows))
}

func TestFeatureStore_InvalidInput(t *testing.T) {
	store := NewFeatureStore(nil)
	assert.ErrorIs(t, store.InsertBulk(context.Background(), "", testFeatureRows()), storage.ErrInvalidInput)
	assert.NoError(t, store.InsertBulk(context.Background(), "run", nil))
}
