package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using PostgreSQL.
// NaN and ±Infinity are stored natively in double precision columns.
type FeatureStore struct {
	pool *Pool
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(pool *Pool) *FeatureStore {
	return &FeatureStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

const featureColumns = `run_id, prod_id, date, price, qty_order, min, max, mean, median,
			qty_day_shift, diff_min_pct, diff_mean_pct, qty_order_log`

// InsertBulk adds the rows of one run atomically. Fails entire batch on any duplicate.
func (s *FeatureStore) InsertBulk(ctx context.Context, runID string, rows []domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	if runID == "" {
		return storage.ErrInvalidInput
	}
	for _, r := range rows {
		if r.ProdID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO feature_rows (
			` + featureColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for _, r := range rows {
		_, err := tx.Exec(ctx, query,
			runID,
			r.ProdID,
			r.Date,
			r.Price,
			r.QtyOrder,
			r.Min,
			r.Max,
			r.Mean,
			r.Median,
			r.QtyDayShift,
			r.DiffMinPct,
			r.DiffMeanPct,
			r.QtyOrderLog,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert feature row in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all rows of a run, ordered by (prod_id, date) ASC.
func (s *FeatureStore) GetByRunID(ctx context.Context, runID string) ([]domain.FeatureRow, error) {
	query := `
		SELECT prod_id, date, price, qty_order, min, max, mean, median,
			qty_day_shift, diff_min_pct, diff_mean_pct, qty_order_log
		FROM feature_rows
		WHERE run_id = $1
		ORDER BY prod_id ASC, date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get feature rows by run id: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// GetByProduct retrieves the rows of one product in a run, ordered by date ASC.
func (s *FeatureStore) GetByProduct(ctx context.Context, runID, prodID string) ([]domain.FeatureRow, error) {
	query := `
		SELECT prod_id, date, price, qty_order, min, max, mean, median,
			qty_day_shift, diff_min_pct, diff_mean_pct, qty_order_log
		FROM feature_rows
		WHERE run_id = $1 AND prod_id = $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, prodID)
	if err != nil {
		return nil, fmt.Errorf("get feature rows by product: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// scanFeatureRows scans rows into FeatureRow values.
func scanFeatureRows(rows pgx.Rows) ([]domain.FeatureRow, error) {
	var result []domain.FeatureRow
	for rows.Next() {
		var r domain.FeatureRow
		err := rows.Scan(
			&r.ProdID,
			&r.Date,
			&r.Price,
			&r.QtyOrder,
			&r.Min,
			&r.Max,
			&r.Mean,
			&r.Median,
			&r.QtyDayShift,
			&r.DiffMinPct,
			&r.DiffMeanPct,
			&r.QtyOrderLog,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		r.Date = r.Date.UTC()
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}

	return result, nil
}
