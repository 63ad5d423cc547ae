package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"price-feature-lab/internal/storage"
	"price-feature-lab/internal/table"
)

// TableStore reads and writes raw input tables in PostgreSQL.
// Save creates an all-TEXT table; Load reads any table as text cells.
type TableStore struct {
	pool *Pool
}

// NewTableStore creates a new TableStore.
func NewTableStore(pool *Pool) *TableStore {
	return &TableStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.TableSource = (*TableStore)(nil)
	_ storage.TableSink   = (*TableStore)(nil)
)

// Load reads every row of the named table. name may be schema-qualified ("raw.sales").
// Cells are read through the simple protocol so every value arrives in its text form.
func (s *TableStore) Load(ctx context.Context, name string) (*table.Table, error) {
	if name == "" {
		return nil, storage.ErrInvalidInput
	}

	query := "SELECT * FROM " + identifier(name).Sanitize()
	rows, err := s.pool.Query(ctx, query, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		if isUndefinedTableError(err) {
			return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("load table %s: %w", name, err)
	}
	defer rows.Close()

	t := &table.Table{}
	for _, fd := range rows.FieldDescriptions() {
		t.Columns = append(t.Columns, fd.Name)
	}

	for rows.Next() {
		raw := rows.RawValues()
		cells := make([]string, len(raw))
		for i, v := range raw {
			cells[i] = string(v) // NULL reads as ""
		}
		t.Rows = append(t.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTableError(err) {
			return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("iterate table %s: %w", name, err)
	}

	return t, nil
}

// Save replaces the named table with the contents of t, atomically.
func (s *TableStore) Save(ctx context.Context, name string, t *table.Table) error {
	if name == "" || t == nil || len(t.Columns) == 0 {
		return storage.ErrInvalidInput
	}

	ident := identifier(name)

	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = pgx.Identifier{c}.Sanitize() + " TEXT"
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	values := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]any, len(t.Columns))
		for j := range t.Columns {
			if j < len(row) {
				cells[j] = row[j]
			} else {
				cells[j] = ""
			}
		}
		values[i] = cells
	}

	if _, err := tx.CopyFrom(ctx, ident, t.Columns, pgx.CopyFromRows(values)); err != nil {
		return fmt.Errorf("copy into %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// identifier splits an optionally schema-qualified table name.
func identifier(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}
