package migrations

import (
	"context"

	"price-feature-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded PostgreSQL files in lexical order.
// Files run whole; every statement is idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	return applyDir(ctx, PostgresFS, "postgres", false, func(ctx context.Context, sql string) error {
		_, err := pool.Exec(ctx, sql)
		return err
	})
}
