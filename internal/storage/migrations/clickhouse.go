package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "price-feature-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if needed, then applies
// the embedded ClickHouse files one statement at a time.
// Returns a connection to the target database for reuse.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	if err := createDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	exec := func(ctx context.Context, sql string) error { return conn.Exec(ctx, sql) }
	if err := applyDir(ctx, ClickhouseFS, "clickhouse", true, exec); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteCH(dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// quoteCH quotes a ClickHouse identifier with backticks.
func quoteCH(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// databaseFromDSN returns the database named by the DSN path.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
