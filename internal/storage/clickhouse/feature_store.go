package clickhouse

import (
	"context"
	"fmt"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
type FeatureStore struct {
	conn *Conn
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(conn *Conn) *FeatureStore {
	return &FeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// InsertBulk adds the rows of one run. Fails entire batch on duplicate.
func (s *FeatureStore) InsertBulk(ctx context.Context, runID string, rows []domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	if runID == "" {
		return storage.ErrInvalidInput
	}

	// Check for intra-batch duplicates
	type key struct {
		prodID string
		day    int64
	}
	seen := make(map[key]struct{}, len(rows))
	for _, r := range rows {
		if r.ProdID == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.ProdID, r.Date.Unix()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// A run is written once; any existing row for it is a duplicate.
	exists, err := s.runExists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO feature_rows (
			run_id, prod_id, date, price, qty_order,
			min, max, mean, median,
			qty_day_shift, diff_min_pct, diff_mean_pct, qty_order_log
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			runID, r.ProdID, r.Date, r.Price, r.QtyOrder,
			r.Min, r.Max, r.Mean, r.Median,
			r.QtyDayShift, r.DiffMinPct, r.DiffMeanPct, r.QtyOrderLog,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all rows of a run, ordered by (prod_id, date) ASC.
func (s *FeatureStore) GetByRunID(ctx context.Context, runID string) ([]domain.FeatureRow, error) {
	query := `
		SELECT
			prod_id, date, price, qty_order,
			min, max, mean, median,
			qty_day_shift, diff_min_pct, diff_mean_pct, qty_order_log
		FROM feature_rows FINAL
		WHERE run_id = ?
		ORDER BY prod_id ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// GetByProduct retrieves the rows of one product in a run, ordered by date ASC.
func (s *FeatureStore) GetByProduct(ctx context.Context, runID, prodID string) ([]domain.FeatureRow, error) {
	query := `
		SELECT
			prod_id, date, price, qty_order,
			min, max, mean, median,
			qty_day_shift, diff_min_pct, diff_mean_pct, qty_order_log
		FROM feature_rows FINAL
		WHERE run_id = ? AND prod_id = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, prodID)
	if err != nil {
		return nil, fmt.Errorf("query by product: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// runExists checks if any row of the run exists.
func (s *FeatureStore) runExists(ctx context.Context, runID string) (bool, error) {
	query := `SELECT count(*) FROM feature_rows WHERE run_id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanFeatureRows scans multiple rows.
func scanFeatureRows(rows chRows) ([]domain.FeatureRow, error) {
	var result []domain.FeatureRow

	for rows.Next() {
		var r domain.FeatureRow
		err := rows.Scan(
			&r.ProdID, &r.Date, &r.Price, &r.QtyOrder,
			&r.Min, &r.Max, &r.Mean, &r.Median,
			&r.QtyDayShift, &r.DiffMinPct, &r.DiffMeanPct, &r.QtyOrderLog,
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
