// Package main copies raw CSV/XLSX tables into PostgreSQL or SQLite so that
// build-features can read them with --source postgres or --source sqlite.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"price-feature-lab/internal/config"
	"price-feature-lab/internal/pipeline"
	"price-feature-lab/internal/storage"
	"price-feature-lab/internal/storage/file"
	pgstore "price-feature-lab/internal/storage/postgres"
	sqlitestore "price-feature-lab/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Parse flags
	target := flag.String("target", "sqlite", "Destination database: postgres or sqlite")
	dataDir := flag.String("data-dir", cfg.DataDir, "Directory of CSV/XLSX files")
	sheet := flag.String("sheet", cfg.Sheet, "Worksheet name for XLSX inputs (default: first sheet)")
	tables := flag.String("tables", cfg.SalesTable+","+cfg.CompetitorTable, "Comma-separated table names to copy")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	sqlitePath := flag.String("sqlite-path", cfg.SQLitePath, "SQLite database file")
	useFixtures := flag.Bool("use-fixtures", false, "Copy the built-in fixture tables instead of files")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logger
	logger := log.New(os.Stdout, "[load-tables] ", log.LstdFlags|log.Lshortfile)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sink storage.TableSink
	switch *target {
	case "postgres":
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required for target postgres")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer pool.Close()
		sink = pgstore.NewTableStore(pool)
	case "sqlite":
		db, err := sqlitestore.Open(ctx, *sqlitePath)
		if err != nil {
			logger.Fatalf("Failed to open SQLite: %v", err)
		}
		defer db.Close()
		sink = sqlitestore.NewTableStore(db)
	default:
		logger.Fatalf("Unknown target: %s", *target)
	}

	if *useFixtures {
		if err := pipeline.LoadFixtures(ctx, sink); err != nil {
			logger.Fatalf("Error: %v", err)
		}
		logger.Printf("Loaded fixture tables %s, %s", pipeline.FixtureSalesTable, pipeline.FixtureCompetitorTable)
		return
	}

	if err := copyTables(ctx, logger, file.NewSource(*dataDir, *sheet), sink, *tables); err != nil {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Done")
}

// copyTables loads each named file table and saves it under its base name.
func copyTables(ctx context.Context, logger *log.Logger, src *file.Source, sink storage.TableSink, names string) error {
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t, err := src.Load(ctx, name)
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		dest := tableName(name)
		if err := sink.Save(ctx, dest, t); err != nil {
			return fmt.Errorf("save %s: %w", dest, err)
		}
		logger.Printf("Copied %s -> %s (%d rows)", name, dest, t.Len())
	}
	return nil
}
