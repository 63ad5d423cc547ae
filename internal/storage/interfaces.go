package storage

import (
	"context"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/table"
)

// TableSource loads raw, column-named tables by name.
type TableSource interface {
	// Load returns a fresh copy of the named table. Returns ErrNotFound if it does not exist.
	Load(ctx context.Context, name string) (*table.Table, error)
}

// TableSink persists raw tables by name, replacing any previous content.
type TableSink interface {
	// Save stores t under name. Returns ErrInvalidInput on an empty name or header.
	Save(ctx context.Context, name string, t *table.Table) error
}

// FeatureStore provides access to feature_rows storage.
type FeatureStore interface {
	// InsertBulk adds the rows of one run atomically. Fails the entire batch with
	// ErrDuplicateKey if any (run_id, prod_id, date) exists or repeats in the batch.
	InsertBulk(ctx context.Context, runID string, rows []domain.FeatureRow) error

	// GetByRunID retrieves all rows of a run, ordered by (prod_id, date) ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.FeatureRow, error)

	// GetByProduct retrieves the rows of one product in a run, ordered by date ASC.
	GetByProduct(ctx context.Context, runID, prodID string) ([]domain.FeatureRow, error)
}

// RunStore provides access to the feature_runs registry.
type RunStore interface {
	// Insert records a run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetLatest returns the most recently started run. Returns ErrNotFound if none.
	GetLatest(ctx context.Context) (*domain.RunRecord, error)
}
