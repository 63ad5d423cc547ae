package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/features"
	"price-feature-lab/internal/storage"
)

// Stage names, in pipeline order.
const (
	StageRawSales          = "raw_sales"
	StageRawCompetitor     = "raw_competitor"
	StageDuplicatesDropped = "competitor_duplicates_dropped"
	StageDailySales        = "daily_sales"
	StageCompetitorPrices  = "competitor_prices"
	StageJoined            = "joined"
	StageLagDropped        = "lag_dropped"
	StageFeatures          = "features"
)

// Generator produces reports from stored runs.
type Generator struct {
	runStore     storage.RunStore
	featureStore storage.FeatureStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore, featureStore storage.FeatureStore) *Generator {
	return &Generator{
		runStore:     runStore,
		featureStore: featureStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of a stored run. An empty runID selects the latest run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	var (
		run *domain.RunRecord
		err error
	)
	if runID == "" {
		run, err = g.runStore.GetLatest(ctx)
	} else {
		run, err = g.runStore.GetByID(ctx, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %q: %w", runID, err)
	}

	rows, err := g.featureStore.GetByRunID(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("load feature rows of %s: %w", run.RunID, err)
	}

	r := FromRows(run.RunID, rows, g.now())
	r.SalesTable = run.SalesTable
	r.CompetitorTable = run.CompetitorTable
	r.Stages = []StageRow{
		{StageRawSales, run.RawSalesRows},
		{StageRawCompetitor, run.RawCompRows},
		{StageFeatures, run.FeatureRows},
	}
	if run.Status == domain.RunStatusFailed {
		r.DataQuality.Warnings = append(r.DataQuality.Warnings, "run failed: "+run.Error)
	}
	if len(rows) != run.FeatureRows {
		r.DataQuality.Warnings = append(r.DataQuality.Warnings,
			fmt.Sprintf("store holds %d feature rows, run recorded %d", len(rows), run.FeatureRows))
	}
	return r, nil
}

// FromBuild builds the report of an in-process run.
func FromBuild(runID string, result *features.Result, generatedAt time.Time) *Report {
	r := FromRows(runID, result.Features, generatedAt)
	s := result.Stats
	r.Stages = []StageRow{
		{StageRawSales, s.RawSalesRows},
		{StageRawCompetitor, s.RawCompetitorRows},
		{StageDuplicatesDropped, s.DuplicatesDropped},
		{StageDailySales, s.DailySalesRows},
		{StageCompetitorPrices, s.CompetitorRows},
		{StageJoined, s.JoinedRows},
		{StageLagDropped, s.LagDroppedRows},
		{StageFeatures, s.FeatureRows},
	}
	if s.FeatureRows == 0 {
		r.DataQuality.Warnings = append(r.DataQuality.Warnings,
			"no (product, day) had sales, competitor prices and a previous-day row")
	}
	return r
}

// FromRows builds the product and data quality sections from feature rows.
func FromRows(runID string, rows []domain.FeatureRow, generatedAt time.Time) *Report {
	r := &Report{
		GeneratedAt: generatedAt,
		RunID:       runID,
		Products:    summarizeProducts(rows),
	}
	for _, row := range rows {
		if row.QtyOrderLog != nil {
			r.IncludeQtyLog = true
			break
		}
	}

	for col, n := range features.CountNonFinite(rows) {
		r.DataQuality.NonFinite = append(r.DataQuality.NonFinite, NonFiniteRow{Column: col, Count: n})
	}
	sort.Slice(r.DataQuality.NonFinite, func(i, j int) bool {
		return r.DataQuality.NonFinite[i].Column < r.DataQuality.NonFinite[j].Column
	})
	return r
}

// summarizeProducts groups rows by product, sorted by prod_id.
func summarizeProducts(rows []domain.FeatureRow) []ProductSummaryRow {
	type acc struct {
		row                         ProductSummaryRow
		priceSum                    float64
		diffMinSum, diffMeanSum     float64
		diffMinCount, diffMeanCount int
	}
	groups := make(map[string]*acc)

	for _, r := range rows {
		a, ok := groups[r.ProdID]
		if !ok {
			a = &acc{row: ProductSummaryRow{ProdID: r.ProdID, FirstDate: r.Date, LastDate: r.Date}}
			groups[r.ProdID] = a
		}
		a.row.FeatureRows++
		a.row.TotalQty += r.QtyOrder
		a.priceSum += r.Price
		if r.Date.Before(a.row.FirstDate) {
			a.row.FirstDate = r.Date
		}
		if r.Date.After(a.row.LastDate) {
			a.row.LastDate = r.Date
		}
		if isFinite(r.DiffMinPct) {
			a.diffMinSum += r.DiffMinPct
			a.diffMinCount++
		}
		if isFinite(r.DiffMeanPct) {
			a.diffMeanSum += r.DiffMeanPct
			a.diffMeanCount++
		}
	}

	result := make([]ProductSummaryRow, 0, len(groups))
	for _, a := range groups {
		a.row.MeanPrice = a.priceSum / float64(a.row.FeatureRows)
		if a.diffMinCount > 0 {
			a.row.MeanDiffMinPct = a.diffMinSum / float64(a.diffMinCount)
		}
		if a.diffMeanCount > 0 {
			a.row.MeanDiffMeanPct = a.diffMeanSum / float64(a.diffMeanCount)
		}
		result = append(result, a.row)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ProdID < result[j].ProdID
	})
	return result
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
