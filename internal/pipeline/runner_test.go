package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/features"
	"price-feature-lab/internal/observability"
	"price-feature-lab/internal/reporting"
	"price-feature-lab/internal/storage"
	"price-feature-lab/internal/storage/memory"
	"price-feature-lab/internal/table"
)

var fixedTime = time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

func fixtureSource(t *testing.T) *memory.TableStore {
	t.Helper()
	src := memory.NewTableStore()
	require.NoError(t, LoadFixtures(context.Background(), src))
	return src
}

func baseOptions(src storage.TableSource) Options {
	return Options{
		SalesSource:      src,
		CompetitorSource: src,
		SalesTable:       FixtureSalesTable,
		CompetitorTable:  FixtureCompetitorTable,
		Clock:            func() time.Time { return fixedTime },
		RunID:            "run-fixture",
	}
}

func TestRunner_Fixtures(t *testing.T) {
	src := fixtureSource(t)
	store := memory.NewFeatureStore()
	runs := memory.NewRunStore()
	outDir := t.TempDir()

	opts := baseOptions(src)
	opts.Sinks = []Sink{{Name: "memory", Store: store}}
	opts.RunStore = runs
	opts.OutputDir = outDir

	result, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	s := result.Stats
	assert.Equal(t, 9, s.RawSalesRows)
	assert.Equal(t, 12, s.RawCompetitorRows)
	assert.Equal(t, 1, s.DuplicatesDropped)
	assert.Equal(t, 7, s.DailySalesRows)
	assert.Equal(t, 11, s.CompetitorRows)
	assert.Equal(t, 6, s.JoinedRows)
	assert.Equal(t, 3, s.LagDroppedRows)
	assert.Equal(t, 3, s.FeatureRows)

	require.Len(t, result.Features, 3)
	got := make([]string, len(result.Features))
	for i, r := range result.Features {
		got[i] = r.ProdID + " " + r.Date.Format(domain.DateLayout)
	}
	assert.Equal(t, []string{"P001 2024-01-02", "P001 2024-01-03", "P002 2024-01-04"}, got)

	p001 := result.Features[0]
	assert.Equal(t, 10.0, p001.Price)
	assert.Equal(t, int64(3), p001.QtyOrder)
	assert.Equal(t, int64(3), p001.QtyDayShift)
	assert.Equal(t, 10.0, p001.Min)
	assert.InDelta(t, 10.4, p001.Mean, 1e-9)

	p002 := result.Features[2]
	assert.Equal(t, int64(2), p002.QtyDayShift)
	assert.True(t, math.IsInf(p002.DiffMinPct, 1))
	assert.InDelta(t, 1.75/2.25, p002.DiffMeanPct, 1e-9)

	// Sink received the same rows
	stored, err := store.GetByRunID(context.Background(), "run-fixture")
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	// Run recorded
	rec, err := runs.GetByID(context.Background(), "run-fixture")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, rec.Status)
	assert.Equal(t, 3, rec.FeatureRows)
	assert.Equal(t, 1, rec.NonFiniteCells)
	assert.Empty(t, rec.Error)

	// Output files
	require.Len(t, result.Files, 2)
	csvBytes, err := os.ReadFile(filepath.Join(outDir, FeaturesCSVFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csvBytes), strings.Join(domain.FeatureColumns(false), ",")+"\n"))
	assert.Contains(t, string(csvBytes), "P002,2024-01-04,4,4,0,4.5,2.25,2.25,2,+Inf,")

	md, err := os.ReadFile(filepath.Join(outDir, ReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "Run: run-fixture")
	assert.Contains(t, string(md), "Data version: "+result.DataVersion)
	assert.Contains(t, string(md), "| diff_min_pct | 1 |")
	assert.Len(t, result.DataVersion, 64)
}

func TestRunner_Deterministic(t *testing.T) {
	src := fixtureSource(t)

	dir1, dir2 := t.TempDir(), t.TempDir()
	opts := baseOptions(src)

	opts.OutputDir = dir1
	r1, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	opts.OutputDir = dir2
	r2, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, r1.DataVersion, r2.DataVersion)
	for _, f := range []string{FeaturesCSVFile, ReportFile} {
		a, err := os.ReadFile(filepath.Join(dir1, f))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dir2, f))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), "%s differs between runs", f)
	}
}

func TestRunner_QtyLogAndXLSX(t *testing.T) {
	src := fixtureSource(t)
	outDir := t.TempDir()

	opts := baseOptions(src)
	opts.IncludeQtyLog = true
	opts.WriteXLSX = true
	opts.OutputDir = outDir

	result, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Files, 3)

	for _, r := range result.Features {
		require.NotNil(t, r.QtyOrderLog)
		assert.InDelta(t, math.Log(float64(r.QtyOrder)), *r.QtyOrderLog, 1e-12)
	}

	back, err := table.ReadXLSXFile(filepath.Join(outDir, FeaturesXLSXFile), "features")
	require.NoError(t, err)
	assert.Equal(t, domain.FeatureColumns(true), back.Columns)
	assert.Equal(t, 3, back.Len())
}

func TestRunner_GeneratedRunID(t *testing.T) {
	opts := baseOptions(fixtureSource(t))
	opts.RunID = ""

	result, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.RunID, 36)
}

func TestRunner_MissingTableRecordsFailure(t *testing.T) {
	src := memory.NewTableStore()
	require.NoError(t, src.Save(context.Background(), FixtureSalesTable, FixtureSales()))
	runs := memory.NewRunStore()

	opts := baseOptions(src)
	opts.RunStore = runs

	_, err := New(opts).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	rec, err := runs.GetByID(context.Background(), "run-fixture")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, rec.Status)
	assert.Contains(t, rec.Error, FixtureCompetitorTable)
}

func TestRunner_BuildErrorPropagates(t *testing.T) {
	src := memory.NewTableStore()
	ctx := context.Background()
	require.NoError(t, src.Save(ctx, "sales", table.New(
		[]string{"prod_id", "date_order", "qty_order", "revenue"},
		[][]string{{"P001", "2024-01-01", "0", "10"}},
	)))
	require.NoError(t, src.Save(ctx, "comp", FixtureCompetitorPrices()))

	opts := baseOptions(src)
	opts.SalesTable, opts.CompetitorTable = "sales", "comp"

	_, err := New(opts).Run(ctx)
	assert.True(t, errors.Is(err, features.ErrInvalidQuantity), "got %v", err)
}

func TestRunner_DuplicateRunFailsSink(t *testing.T) {
	src := fixtureSource(t)
	store := memory.NewFeatureStore()

	opts := baseOptions(src)
	opts.Sinks = []Sink{{Name: "memory", Store: store}}

	_, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	_, err = New(opts).Run(context.Background())
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "got %v", err)
}

func TestRunner_Metrics(t *testing.T) {
	m := observability.NewMetrics("test")
	opts := baseOptions(fixtureSource(t))
	opts.Metrics = m
	opts.Sinks = []Sink{{Name: "memory", Store: memory.NewFeatureStore()}}

	_, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.RawRowsRead.WithLabelValues(FixtureSalesTable)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StageRows.WithLabelValues(reporting.StageFeatures)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FeatureRowsEmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicatesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NonFiniteCells.WithLabelValues(domain.ColDiffMinPct)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StoreWriteErrors.WithLabelValues("memory")))
	assert.Equal(t, float64(fixedTime.Unix()), testutil.ToFloat64(m.LastSuccessfulRun))
}

func TestRunner_VerboseLogging(t *testing.T) {
	var buf bytes.Buffer
	opts := baseOptions(fixtureSource(t))
	opts.Logger = log.New(&buf, "", 0)

	_, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	opts.Verbose = true
	_, err = New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Phase 1: Loading raw tables...")
	assert.Contains(t, buf.String(), "Phase 3: Skipping sinks")
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(baseOptions(fixtureSource(t))).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_MissingSources(t *testing.T) {
	_, err := New(Options{}).Run(context.Background())
	assert.Error(t, err)
}
