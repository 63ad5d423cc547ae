package features

import "errors"

// Pipeline errors. Callers match them with errors.Is; the wrapped message carries
// the offending column, row and value.
var (
	// ErrMissingColumn is returned when a required column is absent after
	// lowercasing the header.
	ErrMissingColumn = errors.New("missing column")

	// ErrParse is returned when a cell cannot be parsed as the expected
	// timestamp, date or number.
	ErrParse = errors.New("parse error")

	// ErrInvalidQuantity is returned when qty_order <= 0, which would make the
	// unit price non-finite and corrupt the volume weighting.
	ErrInvalidQuantity = errors.New("invalid quantity")
)
