package features

import (
	"math"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/table"
)

// Stats counts rows at each stage of a Build.
type Stats struct {
	RawSalesRows      int
	RawCompetitorRows int
	DuplicatesDropped int
	DailySalesRows    int
	CompetitorRows    int
	JoinedRows        int
	LagDroppedRows    int
	FeatureRows       int
	NonFiniteByColumn map[string]int
}

// NonFiniteTotal sums NonFiniteByColumn.
func (s Stats) NonFiniteTotal() int {
	total := 0
	for _, n := range s.NonFiniteByColumn {
		total += n
	}
	return total
}

// Result is the output of Build.
type Result struct {
	Features []domain.FeatureRow
	Stats    Stats
}

// Build runs the full transform: competitor price normalization, sales
// aggregation, then the feature join. Inputs are never modified, so calling
// Build twice on the same tables yields the same result.
func Build(sales, prices *table.Table, opts Options) (*Result, error) {
	competitor, duplicates, err := prepareCompetitorPrices(prices)
	if err != nil {
		return nil, err
	}
	daily, err := AggregateSales(sales)
	if err != nil {
		return nil, err
	}

	rows, joined, err := joinFeatures(daily, competitor, opts)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		RawSalesRows:      sales.Len(),
		RawCompetitorRows: prices.Len(),
		DuplicatesDropped: duplicates,
		DailySalesRows:    len(daily),
		CompetitorRows:    len(competitor),
		JoinedRows:        joined,
		LagDroppedRows:    joined - len(rows),
		FeatureRows:       len(rows),
		NonFiniteByColumn: CountNonFinite(rows),
	}

	return &Result{Features: rows, Stats: stats}, nil
}

// CountNonFinite counts NaN and ±Inf values per float column.
// Columns without non-finite values are omitted.
func CountNonFinite(rows []domain.FeatureRow) map[string]int {
	counts := make(map[string]int)
	add := func(col string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			counts[col]++
		}
	}
	for _, r := range rows {
		add(domain.ColPrice, r.Price)
		add(domain.ColMin, r.Min)
		add(domain.ColMax, r.Max)
		add(domain.ColMean, r.Mean)
		add(domain.ColMedian, r.Median)
		add(domain.ColDiffMinPct, r.DiffMinPct)
		add(domain.ColDiffMeanPct, r.DiffMeanPct)
		if r.QtyOrderLog != nil {
			add(domain.ColQtyOrderLog, *r.QtyOrderLog)
		}
	}
	return counts
}
