package migrations

import (
	"context"

	"price-feature-lab/internal/storage/sqlite"
)

// RunSQLiteMigrations applies all embedded SQLite files in lexical order.
// Every statement uses IF NOT EXISTS, so reruns are no-ops.
func RunSQLiteMigrations(ctx context.Context, db *sqlite.DB) error {
	return applyDir(ctx, SQLiteFS, "sqlite", false, func(ctx context.Context, sql string) error {
		_, err := db.ExecContext(ctx, sql)
		return err
	})
}
