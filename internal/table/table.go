// Package table holds raw, column-named tabular data as loaded from CSV, Excel or SQL
// sources before any typing or cleaning happens.
package table

import (
	"strings"
)

// Table is a column-named grid of string cells.
// Rows may be shorter than Columns (ragged input); missing cells read as "".
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates a table from columns and rows. Inputs are copied.
func New(columns []string, rows [][]string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	if len(rows) > 0 {
		t.Rows = make([][]string, len(rows))
		for i, r := range rows {
			t.Rows[i] = append([]string(nil), r...)
		}
	}
	return t
}

// Clone returns a deep copy. A nil table clones to an empty one.
func (t *Table) Clone() *Table {
	if t == nil {
		return &Table{}
	}
	return New(t.Columns, t.Rows)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// WithLowercaseColumns returns a copy whose header names are trimmed and lowercased.
// The receiver is not modified.
func (t *Table) WithLowercaseColumns() *Table {
	c := t.Clone()
	for i, name := range c.Columns {
		c.Columns[i] = strings.ToLower(strings.TrimSpace(name))
	}
	return c
}

// ColumnIndex returns the position of the first column named name (exact match).
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t == nil {
		return -1, false
	}
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Require resolves the given column names to positions.
// Names that are absent are returned in missing, in argument order.
func (t *Table) Require(names ...string) (index map[string]int, missing []string) {
	index = make(map[string]int, len(names))
	for _, name := range names {
		i, ok := t.ColumnIndex(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		index[name] = i
	}
	return index, missing
}

// Cell returns the trimmed value at (row, col), or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// Append adds a row. The slice is copied.
func (t *Table) Append(row ...string) {
	t.Rows = append(t.Rows, append([]string(nil), row...))
}
