package reporting

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/features"
	"price-feature-lab/internal/storage"
	"price-feature-lab/internal/storage/memory"
	"price-feature-lab/internal/table"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func date(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleRows() []domain.FeatureRow {
	return []domain.FeatureRow{
		{ProdID: "p1", Date: date("2024-01-02"), Price: 10, QtyOrder: 4, Min: 8, Max: 12, Mean: 10, Median: 10, QtyDayShift: 2, DiffMinPct: 0.25, DiffMeanPct: 0},
		{ProdID: "p1", Date: date("2024-01-03"), Price: 12, QtyOrder: 1, Min: 10, Max: 10, Mean: 10, Median: 10, QtyDayShift: 4, DiffMinPct: 0.2, DiffMeanPct: 0.2},
		{ProdID: "p2", Date: date("2024-01-03"), Price: 5, QtyOrder: 3, Min: 0, Max: 6, Mean: 3, Median: 3, QtyDayShift: 1, DiffMinPct: math.Inf(1), DiffMeanPct: 2.0 / 3.0},
	}
}

func setupStores(t *testing.T) (*memory.RunStore, *memory.FeatureStore) {
	ctx := context.Background()
	runStore := memory.NewRunStore()
	featureStore := memory.NewFeatureStore()

	runs := []*domain.RunRecord{
		{RunID: "run-old", StartedAt: fixedNow.Add(-time.Hour), FinishedAt: fixedNow.Add(-time.Hour), Status: domain.RunStatusSucceeded, SalesTable: "sales", CompetitorTable: "comp", RawSalesRows: 1, RawCompRows: 1},
		{RunID: "run-new", StartedAt: fixedNow, FinishedAt: fixedNow, Status: domain.RunStatusSucceeded, SalesTable: "sales_2024", CompetitorTable: "comp_2024", RawSalesRows: 20, RawCompRows: 30, FeatureRows: 3, NonFiniteCells: 1},
	}
	for _, r := range runs {
		if err := runStore.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}
	if err := featureStore.InsertBulk(ctx, "run-new", sampleRows()); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	return runStore, featureStore
}

func TestGenerator_LatestRun(t *testing.T) {
	runStore, featureStore := setupStores(t)
	gen := NewGenerator(runStore, featureStore).WithClock(func() time.Time { return fixedNow })

	r, err := gen.Generate(context.Background(), "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if r.RunID != "run-new" {
		t.Errorf("Expected latest run run-new, got %s", r.RunID)
	}
	if !r.GeneratedAt.Equal(fixedNow) {
		t.Errorf("Expected GeneratedAt %v, got %v", fixedNow, r.GeneratedAt)
	}
	if r.SalesTable != "sales_2024" || r.CompetitorTable != "comp_2024" {
		t.Errorf("Unexpected input tables: %s, %s", r.SalesTable, r.CompetitorTable)
	}
	if len(r.Products) != 2 {
		t.Fatalf("Expected 2 products, got %d", len(r.Products))
	}
	if len(r.DataQuality.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", r.DataQuality.Warnings)
	}
	if len(r.Stages) != 3 || r.Stages[2].Rows != 3 {
		t.Errorf("Unexpected stages: %+v", r.Stages)
	}
}

func TestGenerator_RunWithoutRowsWarns(t *testing.T) {
	runStore, featureStore := setupStores(t)
	gen := NewGenerator(runStore, featureStore).WithClock(func() time.Time { return fixedNow })

	r, err := gen.Generate(context.Background(), "run-old")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(r.Products) != 0 {
		t.Errorf("Expected no products, got %d", len(r.Products))
	}
	if len(r.DataQuality.Warnings) != 0 {
		t.Errorf("Run recorded 0 rows and store holds 0, expected no warnings, got %v", r.DataQuality.Warnings)
	}
}

func TestGenerator_UnknownRun(t *testing.T) {
	runStore, featureStore := setupStores(t)
	gen := NewGenerator(runStore, featureStore)

	_, err := gen.Generate(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	runStore, featureStore := setupStores(t)
	gen := NewGenerator(runStore, featureStore).WithClock(func() time.Time { return fixedNow })

	r1, err := gen.Generate(context.Background(), "run-new")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	r2, err := gen.Generate(context.Background(), "run-new")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if RenderMarkdown(r1) != RenderMarkdown(r2) {
		t.Error("Markdown output should be deterministic")
	}
}

func TestFromRows_ProductSummary(t *testing.T) {
	r := FromRows("run-1", sampleRows(), fixedNow)

	p1 := r.Products[0]
	if p1.ProdID != "p1" || p1.FeatureRows != 2 || p1.TotalQty != 5 {
		t.Errorf("Unexpected p1 summary: %+v", p1)
	}
	if p1.MeanPrice != 11 {
		t.Errorf("Expected mean price 11, got %v", p1.MeanPrice)
	}
	if !p1.FirstDate.Equal(date("2024-01-02")) || !p1.LastDate.Equal(date("2024-01-03")) {
		t.Errorf("Unexpected date range: %v - %v", p1.FirstDate, p1.LastDate)
	}

	// Non-finite diff values are excluded from the mean.
	p2 := r.Products[1]
	if p2.MeanDiffMinPct != 0 {
		t.Errorf("Expected p2 MeanDiffMinPct 0, got %v", p2.MeanDiffMinPct)
	}

	if len(r.DataQuality.NonFinite) != 1 {
		t.Fatalf("Expected 1 non-finite column, got %+v", r.DataQuality.NonFinite)
	}
	if nf := r.DataQuality.NonFinite[0]; nf.Column != domain.ColDiffMinPct || nf.Count != 1 {
		t.Errorf("Unexpected non-finite row: %+v", nf)
	}
	if r.IncludeQtyLog {
		t.Error("IncludeQtyLog should be false without log values")
	}
}

func TestFromBuild_Stages(t *testing.T) {
	sales := table.New([]string{"prod_id", "date_order", "qty_order", "revenue"}, [][]string{
		{"p1", "2024-01-01", "2", "20"},
		{"p1", "2024-01-02", "1", "12"},
	})
	comp := table.New([]string{"prod_id", "competitor", "competitor_price", "date_extraction"}, [][]string{
		{"p1", "a", "10", "2024-01-01"},
		{"p1", "a", "11", "2024-01-02"},
		{"p1", "a", "11", "2024-01-02"},
	})
	result, err := features.Build(sales, comp, features.Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	r := FromBuild("run-1", result, fixedNow)

	got := make(map[string]int)
	for _, s := range r.Stages {
		got[s.Stage] = s.Rows
	}
	want := map[string]int{
		StageRawSales:          2,
		StageRawCompetitor:     3,
		StageDuplicatesDropped: 1,
		StageDailySales:        2,
		StageCompetitorPrices:  2,
		StageJoined:            2,
		StageLagDropped:        1,
		StageFeatures:          1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Stage %s: expected %d, got %d", k, v, got[k])
		}
	}
	if len(r.DataQuality.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", r.DataQuality.Warnings)
	}
}

func TestFromBuild_EmptyWarns(t *testing.T) {
	r := FromBuild("run-1", &features.Result{}, fixedNow)
	if len(r.DataQuality.Warnings) != 1 {
		t.Errorf("Expected 1 warning, got %v", r.DataQuality.Warnings)
	}
}

func TestRenderMarkdown_Sections(t *testing.T) {
	r := FromRows("run-1", sampleRows(), fixedNow)
	r.SalesTable = "sales"
	r.CompetitorTable = "comp"
	r.Stages = []StageRow{{StageFeatures, 3}}

	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Feature Build Report",
		"Generated: 2024-03-01T12:00:00Z",
		"Run: run-1",
		"Inputs: sales=sales | competitor prices=comp",
		"## Pipeline Stages",
		"| features | 3 |",
		"### Non-finite Values",
		"| diff_min_pct | 1 |",
		"## Products",
		"| p1 | 2 | 2024-01-02 | 2024-01-03 | 5 | 11.0000 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}
	if strings.Contains(md, domain.ColQtyOrderLog) {
		t.Error("qty_order_log column should not be listed")
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&Report{GeneratedAt: fixedNow, RunID: "r"})

	for _, want := range []string{"No stage counts available.", "All feature values are finite.", "No feature rows."} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}
}
