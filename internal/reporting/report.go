package reporting

import "time"

// Report summarizes one feature build run.
type Report struct {
	// Metadata
	GeneratedAt     time.Time
	RunID           string
	SalesTable      string
	CompetitorTable string
	IncludeQtyLog   bool
	DataVersion     string // sha256 of the rendered features CSV; empty if not computed

	// Row counts per stage, in pipeline order
	Stages []StageRow

	// Data Quality
	DataQuality DataQualitySection

	// Per-product summary (sorted by prod_id)
	Products []ProductSummaryRow
}

// StageRow is the row count after one pipeline stage.
type StageRow struct {
	Stage string
	Rows  int
}

// DataQualitySection lists non-finite values and warnings.
type DataQualitySection struct {
	NonFinite []NonFiniteRow // sorted by column
	Warnings  []string
}

// NonFiniteRow counts NaN or infinite values in one output column.
type NonFiniteRow struct {
	Column string
	Count  int
}

// ProductSummaryRow describes the feature rows of one product.
type ProductSummaryRow struct {
	ProdID          string
	FeatureRows     int
	FirstDate       time.Time
	LastDate        time.Time
	MeanPrice       float64
	MeanDiffMinPct  float64 // finite values only; 0 if none
	MeanDiffMeanPct float64 // finite values only; 0 if none
	TotalQty        int64
}
