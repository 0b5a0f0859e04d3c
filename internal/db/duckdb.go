// Package db opens the DuckDB database backing the feature store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config locates the database file. An empty DataDir opens an in-memory
// database.
type Config struct {
	DataDir    string
	DBName     string
	Extensions []string
	Logger     *slog.Logger
}

// Open opens the database and loads the configured extensions. Extensions
// that fail to install are logged and skipped, since the store only needs
// core DuckDB.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "geoform"
		}
		dsn = filepath.Join(dir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("duckdb %q: %w", dsn, err)
	}

	for _, ext := range cfg.Extensions {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil && cfg.Logger != nil {
			cfg.Logger.Warn("duckdb extension unavailable", "extension", ext, "error", err)
		}
	}
	return conn, nil
}

// Tables lists the tables of the main schema.
func Tables(ctx context.Context, conn *sql.DB) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
