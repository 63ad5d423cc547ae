package postgres

import (
	"context"
	"fmt"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `run_id, started_at, finished_at, status, sales_table, competitor_table,
			raw_sales_rows, raw_comp_rows, feature_rows, non_finite_cells, error`

// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO feature_runs (
			` + runColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID,
		r.StartedAt,
		r.FinishedAt,
		string(r.Status),
		r.SalesTable,
		r.CompetitorTable,
		r.RawSalesRows,
		r.RawCompRows,
		r.FeatureRows,
		r.NonFiniteCells,
		r.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run record. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM feature_runs WHERE run_id = $1`
	return s.queryOne(ctx, query, runID)
}

// GetLatest returns the most recently started run. Returns ErrNotFound if none.
func (s *RunStore) GetLatest(ctx context.Context) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM feature_runs ORDER BY started_at DESC, run_id DESC LIMIT 1`
	return s.queryOne(ctx, query)
}

func (s *RunStore) queryOne(ctx context.Context, query string, args ...any) (*domain.RunRecord, error) {
	var r domain.RunRecord
	var status string
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&r.RunID,
		&r.StartedAt,
		&r.FinishedAt,
		&status,
		&r.SalesTable,
		&r.CompetitorTable,
		&r.RawSalesRows,
		&r.RawCompRows,
		&r.FeatureRows,
		&r.NonFiniteCells,
		&r.Error,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.Status = domain.RunStatus(status)
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}
