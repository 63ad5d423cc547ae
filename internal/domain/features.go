package domain

import "time"

// FeatureRow is one row of the daily per-product feature table.
// Exists only when the product has sales and competitor prices on Date and a
// qualifying row on the previous calendar day.
type FeatureRow struct {
	ProdID      string    // product identifier
	Date        time.Time // calendar day, midnight UTC
	Price       float64   // weighted average selling price
	QtyOrder    int64     // total units sold on Date
	Min         float64   // min competitor price on Date
	Max         float64   // max competitor price on Date
	Mean        float64   // mean competitor price on Date
	Median      float64   // median competitor price on Date
	QtyDayShift int64     // qty_order of the previous calendar day
	DiffMinPct  float64   // (price - min) / min, non-finite when min == 0
	DiffMeanPct float64   // (price - mean) / mean, non-finite when mean == 0
	QtyOrderLog *float64  // ln(qty_order), NULL unless requested
}

// Feature table column names, in output order.
const (
	ColProdID      = "prod_id"
	ColDate        = "date"
	ColPrice       = "price"
	ColQtyOrder    = "qty_order"
	ColMin         = "min"
	ColMax         = "max"
	ColMean        = "mean"
	ColMedian      = "median"
	ColQtyDayShift = "qty_day_shift"
	ColDiffMinPct  = "diff_min_pct"
	ColDiffMeanPct = "diff_mean_pct"
	ColQtyOrderLog = "qty_order_log"
)

// FeatureColumns lists the feature table header. qty_order_log is appended
// only when withLog is set.
func FeatureColumns(withLog bool) []string {
	cols := []string{
		ColProdID, ColDate, ColPrice, ColQtyOrder,
		ColMin, ColMax, ColMean, ColMedian,
		ColQtyDayShift, ColDiffMinPct, ColDiffMeanPct,
	}
	if withLog {
		cols = append(cols, ColQtyOrderLog)
	}
	return cols
}

// DateLayout is the canonical calendar-day text format.
const DateLayout = "2006-01-02"
