package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/storage"
)

// RunStore implements storage.RunStore using SQLite. Timestamps are RFC 3339 text in UTC.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feature_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
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
	return s.queryOne(ctx, `SELECT `+runColumns+` FROM feature_runs WHERE run_id = ?`, runID)
}

// GetLatest returns the most recently started run. Returns ErrNotFound if none.
// RFC 3339 UTC text sorts chronologically only at equal precision, so order by julianday.
func (s *RunStore) GetLatest(ctx context.Context) (*domain.RunRecord, error) {
	return s.queryOne(ctx, `SELECT `+runColumns+` FROM feature_runs
		ORDER BY julianday(started_at) DESC, run_id DESC LIMIT 1`)
}

func (s *RunStore) queryOne(ctx context.Context, query string, args ...any) (*domain.RunRecord, error) {
	var (
		r                 domain.RunRecord
		started, finished string
		status            string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&r.RunID,
		&started,
		&finished,
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at %q: %w", finished, err)
	}
	r.Status = domain.RunStatus(status)
	return &r, nil
}
