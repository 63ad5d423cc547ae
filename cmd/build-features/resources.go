package main

import (
	"context"
	"fmt"
	"log"

	"price-feature-lab/internal/config"
	"price-feature-lab/internal/pipeline"
	"price-feature-lab/internal/storage"
	chstore "price-feature-lab/internal/storage/clickhouse"
	"price-feature-lab/internal/storage/file"
	"price-feature-lab/internal/storage/memory"
	"price-feature-lab/internal/storage/migrations"
	pgstore "price-feature-lab/internal/storage/postgres"
	sqlitestore "price-feature-lab/internal/storage/sqlite"
)

// resources holds every connection and store a run uses.
type resources struct {
	pool   *pgstore.Pool
	chConn *chstore.Conn
	db     *sqlitestore.DB

	source   storage.TableSource
	sinks    []pipeline.Sink
	runStore storage.RunStore
}

// openResources connects the backends cfg needs, applies migrations when
// requested, and builds the source, sinks and run store.
func openResources(ctx context.Context, cfg *config.Config, logger *log.Logger) (_ *resources, err error) {
	res := &resources{}
	defer func() {
		if err != nil {
			res.Close()
		}
	}()

	if cfg.NeedsPostgres() {
		res.pool, err = pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Migrate {
			logger.Println("Applying PostgreSQL migrations...")
			if err := migrations.RunPostgresMigrations(ctx, res.pool); err != nil {
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
	}

	if cfg.HasSink(config.SinkClickHouse) {
		if cfg.Migrate {
			logger.Println("Applying ClickHouse migrations...")
			res.chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		} else {
			res.chConn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
		}
		if err != nil {
			return nil, fmt.Errorf("connect clickhouse: %w", err)
		}
	}

	if cfg.NeedsSQLite() {
		res.db, err = sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if cfg.Migrate {
			logger.Println("Applying SQLite migrations...")
			if err := migrations.RunSQLiteMigrations(ctx, res.db); err != nil {
				return nil, fmt.Errorf("sqlite migrations: %w", err)
			}
		}
	}

	switch cfg.Source {
	case config.SourceFile:
		res.source = file.NewSource(cfg.DataDir, cfg.Sheet)
	case config.SourcePostgres:
		res.source = pgstore.NewTableStore(res.pool)
	case config.SourceSQLite:
		res.source = sqlitestore.NewTableStore(res.db)
	case config.SourceFixtures:
		tables := memory.NewTableStore()
		if err := pipeline.LoadFixtures(ctx, tables); err != nil {
			return nil, fmt.Errorf("load fixtures: %w", err)
		}
		res.source = tables
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}

	for _, kind := range cfg.Sinks {
		switch kind {
		case config.SinkPostgres:
			res.sinks = append(res.sinks, pipeline.Sink{Name: kind, Store: pgstore.NewFeatureStore(res.pool)})
		case config.SinkClickHouse:
			res.sinks = append(res.sinks, pipeline.Sink{Name: kind, Store: chstore.NewFeatureStore(res.chConn)})
		case config.SinkSQLite:
			res.sinks = append(res.sinks, pipeline.Sink{Name: kind, Store: sqlitestore.NewFeatureStore(res.db)})
		case config.SinkMemory:
			res.sinks = append(res.sinks, pipeline.Sink{Name: kind, Store: memory.NewFeatureStore()})
		default:
			return nil, fmt.Errorf("unknown sink %q", kind)
		}
	}

	// Runs are recorded next to the first durable feature sink.
	switch {
	case cfg.HasSink(config.SinkPostgres):
		res.runStore = pgstore.NewRunStore(res.pool)
	case cfg.HasSink(config.SinkSQLite):
		res.runStore = sqlitestore.NewRunStore(res.db)
	default:
		res.runStore = memory.NewRunStore()
	}

	return res, nil
}

// Close releases all connections. Safe to call more than once.
func (r *resources) Close() {
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	if r.chConn != nil {
		r.chConn.Close()
		r.chConn = nil
	}
	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
}
