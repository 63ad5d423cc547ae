package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using SQLite.
// SQLite turns NaN into NULL, so NULL floats read back as NaN; qty_order_log
// presence is tracked separately in has_qty_log.
type FeatureStore struct {
	db *DB
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(db *DB) *FeatureStore {
	return &FeatureStore{db: db}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feature_rows (
			run_id, prod_id, date, price, qty_order, min, max, mean, median,
			qty_day_shift, diff_min_pct, diff_mean_pct, qty_order_log, has_qty_log
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var qtyLog any
		hasLog := 0
		if r.QtyOrderLog != nil {
			qtyLog = *r.QtyOrderLog
			hasLog = 1
		}
		_, err := stmt.ExecContext(ctx,
			runID,
			r.ProdID,
			r.Date.Format(domain.DateLayout),
			r.Price,
			r.QtyOrder,
			r.Min,
			r.Max,
			r.Mean,
			r.Median,
			r.QtyDayShift,
			r.DiffMinPct,
			r.DiffMeanPct,
			qtyLog,
			hasLog,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert feature row in bulk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all rows of a run, ordered by (prod_id, date) ASC.
func (s *FeatureStore) GetByRunID(ctx context.Context, runID string) ([]domain.FeatureRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prod_id, date, price, qty_order, min, max, mean, median,
			qty_day_shift, diff_min_pct, diff_mean_pct, qty_order_log, has_qty_log
		FROM feature_rows
		WHERE run_id = ?
		ORDER BY prod_id ASC, date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get feature rows by run id: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// GetByProduct retrieves the rows of one product in a run, ordered by date ASC.
func (s *FeatureStore) GetByProduct(ctx context.Context, runID, prodID string) ([]domain.FeatureRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prod_id, date, price, qty_order, min, max, mean, median,
			qty_day_shift, diff_min_pct, diff_mean_pct, qty_order_log, has_qty_log
		FROM feature_rows
		WHERE run_id = ? AND prod_id = ?
		ORDER BY date ASC
	`, runID, prodID)
	if err != nil {
		return nil, fmt.Errorf("get feature rows by product: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

func scanFeatureRows(rows *sql.Rows) ([]domain.FeatureRow, error) {
	var result []domain.FeatureRow
	for rows.Next() {
		var (
			r                               domain.FeatureRow
			date                            string
			price, minV, maxV, mean, median sql.NullFloat64
			diffMin, diffMean, qtyLog       sql.NullFloat64
			hasLog                          int
		)
		err := rows.Scan(
			&r.ProdID, &date, &price, &r.QtyOrder, &minV, &maxV, &mean, &median,
			&r.QtyDayShift, &diffMin, &diffMean, &qtyLog, &hasLog,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}

		d, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("scan feature row date %q: %w", date, err)
		}
		r.Date = d
		r.Price = orNaN(price)
		r.Min = orNaN(minV)
		r.Max = orNaN(maxV)
		r.Mean = orNaN(mean)
		r.Median = orNaN(median)
		r.DiffMinPct = orNaN(diffMin)
		r.DiffMeanPct = orNaN(diffMean)
		if hasLog == 1 {
			v := orNaN(qtyLog)
			r.QtyOrderLog = &v
		}

		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}
	return result, nil
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
