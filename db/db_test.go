package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"tender-scraper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConnString(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "secret")

	assert.Equal(t, "postgres://explicit", connString("postgres://explicit"))
	assert.Equal(t,
		"host=db.internal port=5432 user=tender_scraper password=secret dbname=tender_scraper sslmode=disable",
		connString(""))

	t.Setenv("DATABASE_URL", "postgres://from-env")
	assert.Equal(t, "postgres://from-env", connString(""))
}

// openTestDB connects to the database named by TENDERS_TEST_DATABASE_URL.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TENDERS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TENDERS_TEST_DATABASE_URL not set")
	}
	db, err := NewDB(context.Background(), url, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	run, err := db.CreateRun(ctx, []string{"https://portal.example.com/esop/public"})
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)

	rec := models.NewRecord()
	rec.Set("Title", "Road Repair RFP")
	rec.Set("Title_links", []models.Link{{Text: "Road Repair RFP", URL: "https://portal.example.com/view/1"}})
	rec.Set(models.FieldRowIndex, 0)
	batch := &models.Batch{
		SourceURL: "https://portal.example.com/esop/public",
		Method:    "http",
		Strategy:  "structural",
		ScrapedAt: time.Now().UTC(),
		Records:   []*models.Record{rec},
	}
	require.NoError(t, db.Sink(run.ID).Write(ctx, batch))

	require.NoError(t, db.FinishRun(ctx, run.ID, RunResult{
		Status:       RunOK,
		SourceURL:    batch.SourceURL,
		Strategy:     batch.Strategy,
		RecordsCount: 1,
	}))

	back, err := db.LoadRecords(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, []string{"Title", "Title_links", models.FieldRowIndex}, back[0].Keys())
	assert.Equal(t, "https://portal.example.com/view/1", back[0].Links("Title_links")[0].URL)

	runs, err := db.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, RunOK, runs[0].Status)
	assert.True(t, runs[0].FinishedAt.Valid)
}

func TestFinishRunStoresError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	run, err := db.CreateRun(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(ctx, run.ID, RunResult{Status: RunFailed, Err: errors.New("all candidate URLs failed")}))

	runs, err := db.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "all candidate URLs failed", runs[0].LastError.String)
	assert.False(t, runs[0].SourceURL.Valid)
}
