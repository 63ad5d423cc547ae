// Package pipeline runs a feature build end to end:
// load raw tables → build features → write sinks → write output files.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/features"
	"price-feature-lab/internal/observability"
	"price-feature-lab/internal/reporting"
	"price-feature-lab/internal/storage"
	"price-feature-lab/internal/table"
)

// Output file names written to OutputDir.
const (
	FeaturesCSVFile  = "features.csv"
	FeaturesXLSXFile = "features.xlsx"
	ReportFile       = "FEATURES_REPORT.md"
)

// Phase names used for duration metrics.
const (
	PhaseLoad   = "load"
	PhaseBuild  = "build"
	PhaseSinks  = "sinks"
	PhaseOutput = "output"
)

// Sink is a named feature store the run writes to.
type Sink struct {
	Name  string
	Store storage.FeatureStore
}

// Options for creating Runner.
type Options struct {
	// Required sources
	SalesSource      storage.TableSource
	CompetitorSource storage.TableSource
	SalesTable       string
	CompetitorTable  string

	// Optional destinations
	Sinks     []Sink
	RunStore  storage.RunStore // records every run, succeeded or failed
	OutputDir string           // empty disables file output
	WriteXLSX bool             // also write features.xlsx

	// Build options
	IncludeQtyLog bool

	// Options
	Metrics *observability.Metrics
	Logger  *log.Logger // defaults to log.Default()
	Verbose bool
	Clock   func() time.Time // defaults to time.Now().UTC()
	RunID   string           // defaults to a random UUID
}

// Runner coordinates one feature build.
type Runner struct {
	opts   Options
	logger *log.Logger
	clock  func() time.Time
}

// RunResult contains results from a run.
type RunResult struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Stats       features.Stats
	Features    []domain.FeatureRow
	Files       []string // paths written under OutputDir
	DataVersion string   // sha256 of the features CSV
}

// New creates a new Runner.
func New(opts Options) *Runner {
	r := &Runner{
		opts:   opts,
		logger: opts.Logger,
		clock:  opts.Clock,
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	if r.clock == nil {
		r.clock = func() time.Time { return time.Now().UTC() }
	}
	return r
}

// Run executes the pipeline.
// Phases:
//  1. Load both raw tables concurrently
//  2. Build the feature table
//  3. Write every sink
//  4. Write output files
//
// A failed run is still recorded in RunStore when one is configured.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if r.opts.SalesSource == nil || r.opts.CompetitorSource == nil {
		return nil, errors.New("pipeline: sales and competitor sources are required")
	}

	runID := r.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &RunResult{RunID: runID, StartedAt: r.clock()}
	r.log("Run %s started", runID)

	err := r.run(ctx, result)
	result.FinishedAt = r.clock()

	status := domain.RunStatusSucceeded
	if err != nil {
		status = domain.RunStatusFailed
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordRun(string(status), result.FinishedAt)
	}
	if recErr := r.recordRun(ctx, result, status, err); recErr != nil {
		if err == nil {
			return nil, fmt.Errorf("record run: %w", recErr)
		}
		r.logger.Printf("record failed run %s: %v", runID, recErr)
	}
	if err != nil {
		return nil, err
	}

	r.log("Run %s completed: %d feature rows", runID, len(result.Features))
	return result, nil
}

func (r *Runner) run(ctx context.Context, result *RunResult) error {
	// Phase 1: Load raw tables
	r.log("Phase 1: Loading raw tables...")
	start := time.Now()
	sales, comp, err := r.loadTables(ctx)
	if err != nil {
		return fmt.Errorf("phase 1 (load tables) failed: %w", err)
	}
	r.observePhase(PhaseLoad, start)
	r.log("  Loaded %s: %d rows, %s: %d rows",
		r.opts.SalesTable, sales.Len(), r.opts.CompetitorTable, comp.Len())
	result.Stats.RawSalesRows = sales.Len()
	result.Stats.RawCompetitorRows = comp.Len()

	// Phase 2: Build
	r.log("Phase 2: Building features...")
	start = time.Now()
	built, err := features.Build(sales, comp, features.Options{IncludeQtyLog: r.opts.IncludeQtyLog})
	if err != nil {
		return fmt.Errorf("phase 2 (build) failed: %w", err)
	}
	r.observePhase(PhaseBuild, start)
	result.Stats = built.Stats
	result.Features = built.Features
	r.recordStats(built.Stats)
	r.log("  Joined %d rows, dropped %d without previous day, emitted %d",
		built.Stats.JoinedRows, built.Stats.LagDroppedRows, built.Stats.FeatureRows)
	if n := built.Stats.NonFiniteTotal(); n > 0 {
		r.log("  %d non-finite values in output", n)
	}

	csvText, err := reporting.RenderFeaturesCSV(built.Features, r.opts.IncludeQtyLog)
	if err != nil {
		return fmt.Errorf("render features csv: %w", err)
	}
	result.DataVersion = dataVersion(csvText)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Phase 3: Sinks
	if len(r.opts.Sinks) > 0 {
		r.log("Phase 3: Writing %d sinks...", len(r.opts.Sinks))
		start = time.Now()
		if err := r.writeSinks(ctx, result.RunID, built.Features); err != nil {
			return fmt.Errorf("phase 3 (sinks) failed: %w", err)
		}
		r.observePhase(PhaseSinks, start)
	} else {
		r.log("Phase 3: Skipping sinks (none configured)")
	}

	// Phase 4: Output files
	if r.opts.OutputDir != "" {
		r.log("Phase 4: Writing output files to %s...", r.opts.OutputDir)
		start = time.Now()
		report := reporting.FromBuild(result.RunID, built, result.StartedAt)
		report.SalesTable = r.opts.SalesTable
		report.CompetitorTable = r.opts.CompetitorTable
		report.IncludeQtyLog = r.opts.IncludeQtyLog
		report.DataVersion = result.DataVersion

		files, err := r.writeOutputs(csvText, report, built.Features)
		if err != nil {
			return fmt.Errorf("phase 4 (output) failed: %w", err)
		}
		result.Files = files
		r.observePhase(PhaseOutput, start)
	} else {
		r.log("Phase 4: Skipping output files (no output dir)")
	}

	return nil
}

// loadTables reads both raw tables concurrently.
func (r *Runner) loadTables(ctx context.Context) (*table.Table, *table.Table, error) {
	var sales, comp *table.Table
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := r.opts.SalesSource.Load(gctx, r.opts.SalesTable)
		if err != nil {
			return fmt.Errorf("load %s: %w", r.opts.SalesTable, err)
		}
		sales = t
		return nil
	})
	g.Go(func() error {
		t, err := r.opts.CompetitorSource.Load(gctx, r.opts.CompetitorTable)
		if err != nil {
			return fmt.Errorf("load %s: %w", r.opts.CompetitorTable, err)
		}
		comp = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordRawRows(r.opts.SalesTable, sales.Len())
		r.opts.Metrics.RecordRawRows(r.opts.CompetitorTable, comp.Len())
	}
	return sales, comp, nil
}

// writeSinks writes rows to each sink in order, stopping at the first error.
func (r *Runner) writeSinks(ctx context.Context, runID string, rows []domain.FeatureRow) error {
	for _, s := range r.opts.Sinks {
		start := time.Now()
		err := s.Store.InsertBulk(ctx, runID, rows)
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordStoreWrite(s.Name, time.Since(start), err)
		}
		if err != nil {
			return fmt.Errorf("sink %s: %w", s.Name, err)
		}
		r.log("  %s: wrote %d rows", s.Name, len(rows))
	}
	return nil
}

func (r *Runner) writeOutputs(csvText string, report *reporting.Report, rows []domain.FeatureRow) ([]string, error) {
	if err := os.MkdirAll(r.opts.OutputDir, 0755); err != nil {
		return nil, err
	}

	var files []string

	csvPath := filepath.Join(r.opts.OutputDir, FeaturesCSVFile)
	if err := os.WriteFile(csvPath, []byte(csvText), 0644); err != nil {
		return nil, err
	}
	files = append(files, csvPath)

	if r.opts.WriteXLSX {
		xlsxPath := filepath.Join(r.opts.OutputDir, FeaturesXLSXFile)
		t := reporting.FeatureTable(rows, r.opts.IncludeQtyLog)
		if err := table.WriteXLSXFile(xlsxPath, "features", t); err != nil {
			return nil, err
		}
		files = append(files, xlsxPath)
	}

	reportPath := filepath.Join(r.opts.OutputDir, ReportFile)
	if err := os.WriteFile(reportPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		return nil, err
	}
	files = append(files, reportPath)

	return files, nil
}

func (r *Runner) recordRun(ctx context.Context, result *RunResult, status domain.RunStatus, runErr error) error {
	if r.opts.RunStore == nil {
		return nil
	}
	rec := &domain.RunRecord{
		RunID:           result.RunID,
		StartedAt:       result.StartedAt,
		FinishedAt:      result.FinishedAt,
		Status:          status,
		SalesTable:      r.opts.SalesTable,
		CompetitorTable: r.opts.CompetitorTable,
		RawSalesRows:    result.Stats.RawSalesRows,
		RawCompRows:     result.Stats.RawCompetitorRows,
		FeatureRows:     len(result.Features),
		NonFiniteCells:  result.Stats.NonFiniteTotal(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
		// A cancelled context must not prevent recording the failure.
		ctx = context.WithoutCancel(ctx)
	}
	return r.opts.RunStore.Insert(ctx, rec)
}

func (r *Runner) recordStats(s features.Stats) {
	m := r.opts.Metrics
	if m == nil {
		return
	}
	m.RecordStageRows(reporting.StageDailySales, s.DailySalesRows)
	m.RecordStageRows(reporting.StageCompetitorPrices, s.CompetitorRows)
	m.RecordStageRows(reporting.StageJoined, s.JoinedRows)
	m.RecordStageRows(reporting.StageLagDropped, s.LagDroppedRows)
	m.RecordStageRows(reporting.StageFeatures, s.FeatureRows)
	m.RecordNonFinite(s.NonFiniteByColumn)
	m.DuplicatesDropped.Add(float64(s.DuplicatesDropped))
	m.FeatureRowsEmitted.Add(float64(s.FeatureRows))
}

func (r *Runner) observePhase(phase string, start time.Time) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordPhase(phase, time.Since(start))
	}
}

// log prints a message if verbose mode is enabled.
func (r *Runner) log(format string, args ...interface{}) {
	if r.opts.Verbose {
		r.logger.Printf(format, args...)
	}
}

// dataVersion hashes the rendered feature table.
func dataVersion(csvText string) string {
	sum := sha256.Sum256([]byte(csvText))
	return hex.EncodeToString(sum[:])
}
