package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"price-feature-lab/internal/table"
)

// timestampLayouts are tried in order. Slash dates are month-first. The
// unpadded "2006-1-2" forms also accept zero-padded input.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-1-2 15:04:05.999999999",
	"2006-1-2T15:04:05.999999999",
	"2006-1-2",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"20060102",
}

// parseTimestamp parses s with the first matching layout.
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// truncateToDay keeps the wall-clock calendar date of ts as midnight UTC.
func truncateToDay(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// timestampCell parses the (row, col) cell as a timestamp.
func timestampCell(t *table.Table, row, col int, column string) (time.Time, error) {
	v := t.Cell(row, col)
	ts, ok := parseTimestamp(v)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: column %q row %d: %q is not a timestamp", ErrParse, column, row+1, v)
	}
	return ts, nil
}

// dayCell parses the (row, col) cell as a timestamp and returns its calendar day.
func dayCell(t *table.Table, row, col int, column string) (time.Time, error) {
	ts, err := timestampCell(t, row, col, column)
	if err != nil {
		return time.Time{}, err
	}
	return truncateToDay(ts), nil
}

// floatCell parses the (row, col) cell as a finite float.
func floatCell(t *table.Table, row, col int, column string) (float64, error) {
	v := t.Cell(row, col)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: column %q row %d: %q is not a number", ErrParse, column, row+1, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: column %q row %d: %q is not finite", ErrParse, column, row+1, v)
	}
	return f, nil
}

// quantityCell parses the (row, col) cell as a whole number. "3.0" is accepted.
func quantityCell(t *table.Table, row, col int, column string) (int64, error) {
	v := t.Cell(row, col)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: column %q row %d: %q is not an integer", ErrParse, column, row+1, v)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= float64(math.MaxInt64) || f < float64(math.MinInt64) {
		return 0, fmt.Errorf("%w: column %q row %d: %q is out of int64 range", ErrParse, column, row+1, v)
	}
	return int64(f), nil
}

// requireColumns lowercases the header of a copy of t and resolves names.
func requireColumns(t *table.Table, names ...string) (*table.Table, map[string]int, error) {
	lower := t.WithLowercaseColumns()
	idx, missing := lower.Require(names...)
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return lower, idx, nil
}

// isEmpty reports whether t carries neither a header nor rows.
func isEmpty(t *table.Table) bool {
	return t == nil || (len(t.Columns) == 0 && len(t.Rows) == 0)
}

// dayFromUnix restores a midnight-UTC day from its unix seconds key.
func dayFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
