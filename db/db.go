package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Schema holds every table the scraper owns
const Schema = "tender_scraper"

// DB wraps the database connection
type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

// NewDB opens a Postgres connection and makes sure the schema exists. An
// empty connStr is built from the DB_* environment variables.
func NewDB(ctx context.Context, connStr string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := sql.Open("postgres", connString(connStr))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, logger: logger}
	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func connString(connStr string) string {
	if connStr != "" {
		return connStr
	}
	if env := os.Getenv("DATABASE_URL"); env != "" {
		return env
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnvOrDefault("DB_HOST", "localhost"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "tender_scraper"),
		getEnvOrDefault("DB_PASSWORD", ""),
		getEnvOrDefault("DB_NAME", "tender_scraper"),
		getEnvOrDefault("DB_SSLMODE", "disable"))
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying pool
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// initSchema creates the tables if they don't exist. Tables are always
// schema-qualified so the pool never depends on search_path.
func (db *DB) initSchema(ctx context.Context) error {
	// the schema may have been created by an administrator already
	if _, err := db.conn.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+Schema); err != nil {
		db.logger.Warn("could not create schema, assuming it exists", zap.Error(err))
	}

	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+Schema+`.scrape_runs (
			id SERIAL PRIMARY KEY,
			status VARCHAR(20) NOT NULL DEFAULT 'running',
			urls TEXT[] NOT NULL DEFAULT '{}',
			source_url TEXT,
			strategy VARCHAR(32),
			records_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMPTZ,
			CONSTRAINT valid_status CHECK (status IN ('running', 'ok', 'empty', 'failed'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create scrape_runs table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+Schema+`.tender_records (
			id SERIAL PRIMARY KEY,
			run_id INTEGER NOT NULL REFERENCES `+Schema+`.scrape_runs(id) ON DELETE CASCADE,
			source_url TEXT NOT NULL,
			method VARCHAR(20),
			strategy VARCHAR(32),
			position INTEGER NOT NULL,
			payload JSONB NOT NULL,
			scraped_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create tender_records table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tender_records_run_id ON `+Schema+`.tender_records(run_id)`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
