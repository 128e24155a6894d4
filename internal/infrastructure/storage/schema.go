package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS news_raw (
		id {{id}},
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		press TEXT,
		url TEXT,
		published_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_raw_published_at ON news_raw (published_at)`,
	`CREATE TABLE IF NOT EXISTS news_extraction (
		id {{id}},
		news_id BIGINT NOT NULL REFERENCES news_raw (id),
		keywords TEXT NOT NULL,
		extractor_model TEXT NOT NULL,
		prompt_version TEXT NOT NULL,
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (news_id, extractor_model, prompt_version)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_master (
		stock_code TEXT PRIMARY KEY,
		stock_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_alias (
		alias TEXT NOT NULL,
		stock_code TEXT NOT NULL,
		PRIMARY KEY (alias, stock_code)
	)`,
	`CREATE TABLE IF NOT EXISTS subsidiary_mapping (
		subsidiary_name TEXT NOT NULL,
		stock_code TEXT NOT NULL,
		PRIMARY KEY (subsidiary_name, stock_code)
	)`,
	`CREATE TABLE IF NOT EXISTS news_embedding (
		news_id BIGINT PRIMARY KEY REFERENCES news_raw (id),
		model TEXT NOT NULL DEFAULT '',
		vector TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_price_daily_raw (
		stock_code TEXT NOT NULL,
		trade_date {{date}} NOT NULL,
		close_price BIGINT,
		diff BIGINT,
		diff_rate {{float}},
		PRIMARY KEY (stock_code, trade_date)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_cluster_result (
		id {{id}},
		stock_code TEXT NOT NULL,
		stock_name TEXT NOT NULL,
		total_count INTEGER NOT NULL,
		input_hash TEXT NOT NULL,
		computed_at {{ts}} NOT NULL,
		result_json TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_cluster_result_latest ON stock_cluster_result (stock_code, computed_at DESC)`,
}

var dialectTypes = map[string]*strings.Replacer{
	DriverPostgres: strings.NewReplacer(
		"{{id}}", "BIGSERIAL PRIMARY KEY",
		"{{ts}}", "TIMESTAMPTZ",
		"{{date}}", "DATE",
		"{{float}}", "DOUBLE PRECISION",
	),
	DriverSQLite: strings.NewReplacer(
		"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "DATETIME",
		"{{date}}", "DATE",
		"{{float}}", "REAL",
	),
}

// Migrate creates the tables the repository reads and writes. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	types, ok := dialectTypes[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
