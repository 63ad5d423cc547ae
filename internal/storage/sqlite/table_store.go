package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"price-feature-lab/internal/storage"
	"price-feature-lab/internal/table"
)

// TableStore reads and writes raw input tables in SQLite.
type TableStore struct {
	db *DB
}

// NewTableStore creates a new TableStore.
func NewTableStore(db *DB) *TableStore {
	return &TableStore{db: db}
}

// Compile-time interface checks.
var (
	_ storage.TableSource = (*TableStore)(nil)
	_ storage.TableSink   = (*TableStore)(nil)
)

// Load reads every row of the named table, converting each value to text.
func (s *TableStore) Load(ctx context.Context, name string) (*table.Table, error) {
	if name == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(name))
	if err != nil {
		if isNoSuchTableError(err) {
			return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("load table %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", name, err)
	}

	t := &table.Table{Columns: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w", name, len(t.Rows)+1, err)
		}
		cells := make([]string, len(cols))
		for i, v := range values {
			cells[i] = cellText(v)
		}
		t.Rows = append(t.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return t, nil
}

// Save replaces the named table with an all-TEXT copy of t, atomically.
func (s *TableStore) Save(ctx context.Context, name string, t *table.Table) error {
	if name == "" || t == nil || len(t.Columns) == 0 {
		return storage.ErrInvalidInput
	}

	defs := make([]string, len(t.Columns))
	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = quoteIdent(c)
		defs[i] = quoted[i] + " TEXT"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+quoteIdent(name)+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	ph := strings.TrimRight(strings.Repeat("?,", len(t.Columns)), ",")
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quoteIdent(name)+" ("+strings.Join(quoted, ",")+") VALUES ("+ph+")")
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", name, err)
	}
	defer stmt.Close()

	for i, row := range t.Rows {
		args := make([]any, len(t.Columns))
		for j := range t.Columns {
			if j < len(row) {
				args[j] = row[j]
			} else {
				args[j] = ""
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s row %d: %w", name, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// cellText renders a scanned SQLite value as table text. NULL is "".
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}
