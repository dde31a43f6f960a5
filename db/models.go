package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tender-scraper/models"

	"github.com/lib/pq"
)

// Run statuses
const (
	RunRunning = "running"
	RunOK      = "ok"
	RunEmpty   = "empty"
	RunFailed  = "failed"
)

// Run is one scrape stored in scrape_runs
type Run struct {
	ID           int
	Status       string
	URLs         []string
	SourceURL    sql.NullString
	Strategy     sql.NullString
	RecordsCount int
	LastError    sql.NullString
	StartedAt    time.Time
	FinishedAt   sql.NullTime
}

// RunResult is what FinishRun records about a finished scrape
type RunResult struct {
	Status       string
	SourceURL    string
	Strategy     string
	RecordsCount int
	Err          error
}

// CreateRun inserts a run in the running state
func (db *DB) CreateRun(ctx context.Context, urls []string) (*Run, error) {
	if urls == nil {
		urls = []string{}
	}
	run := &Run{}
	var stored pq.StringArray
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO `+Schema+`.scrape_runs (status, urls)
		VALUES ($1, $2)
		RETURNING id, status, urls, started_at
	`, RunRunning, pq.Array(urls)).Scan(&run.ID, &run.Status, &stored, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	run.URLs = stored
	return run, nil
}

// FinishRun stores the final state of a run
func (db *DB) FinishRun(ctx context.Context, runID int, res RunResult) error {
	var lastErr sql.NullString
	if res.Err != nil {
		lastErr = sql.NullString{String: res.Err.Error(), Valid: true}
	}
	_, err := db.conn.ExecContext(ctx, `
		UPDATE `+Schema+`.scrape_runs
		SET status = $1, source_url = NULLIF($2, ''), strategy = NULLIF($3, ''),
			records_count = $4, last_error = $5, finished_at = CURRENT_TIMESTAMP
		WHERE id = $6
	`, res.Status, res.SourceURL, res.Strategy, res.RecordsCount, lastErr, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	return nil
}

// SaveRecords stores a batch under runID in a single transaction
func (db *DB) SaveRecords(ctx context.Context, runID int, batch *models.Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+Schema+`.tender_records (run_id, source_url, method, strategy, position, payload, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range batch.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, batch.SourceURL, batch.Method, batch.Strategy, i, string(payload), batch.ScrapedAt); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// LoadRecords returns the records of a run in extraction order
func (db *DB) LoadRecords(ctx context.Context, runID int) ([]*models.Record, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT payload FROM `+Schema+`.tender_records
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rec := models.NewRecord()
		if err := json.Unmarshal(payload, rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentRuns lists the latest runs, newest first
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, status, urls, source_url, strategy, records_count, last_error, started_at, finished_at
		FROM `+Schema+`.scrape_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var urls pq.StringArray
		if err := rows.Scan(&r.ID, &r.Status, &urls, &r.SourceURL, &r.Strategy,
			&r.RecordsCount, &r.LastError, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.URLs = urls
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecordSink stores every batch of one run
type RecordSink struct {
	db    *DB
	runID int
}

// Sink returns a sink that stores batches under runID
func (db *DB) Sink(runID int) *RecordSink {
	return &RecordSink{db: db, runID: runID}
}

func (s *RecordSink) Name() string { return "postgres" }

func (s *RecordSink) Write(ctx context.Context, batch *models.Batch) error {
	return s.db.SaveRecords(ctx, s.runID, batch)
}
