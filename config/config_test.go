package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
portal:
  base: https://portal.example.com
  paths: ["/list"]
  scrape_all: true
fetch:
  mode: http
  timeout: 10s
  attempts: 5
extract:
  scan_scripts: true
  min_loose_text: 40
filters:
  include: [rfp]
output:
  formats: [json, xlsx]
schedule:
  interval: 30m
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.com", cfg.Portal.Base)
	assert.Equal(t, []string{"/list"}, cfg.Portal.Paths)
	assert.True(t, cfg.Portal.ScrapeAll)
	assert.Equal(t, ModeHTTP, cfg.Fetch.Mode)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 5, cfg.Fetch.Attempts)
	assert.True(t, cfg.Extract.ScanScripts)
	assert.Equal(t, 40, cfg.Extract.MinLooseText)
	assert.Equal(t, []string{"rfp"}, cfg.Filters.Include)
	assert.Equal(t, []string{"json", "xlsx"}, cfg.Output.Formats)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.Interval)

	// untouched sections keep their defaults
	assert.Equal(t, EngineRod, cfg.Fetch.Engine)
	assert.Equal(t, time.Second, cfg.Fetch.InitialBackoff)
	assert.NotEmpty(t, cfg.Extract.HeaderKeywords)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "portal: [unclosed"},
		{"unknown mode", "fetch:\n  mode: carrier-pigeon\n"},
		{"manual with chromedp", "fetch:\n  mode: manual\n  engine: chromedp\n"},
		{"unknown format", "output:\n  formats: [pdf]\n"},
		{"sheets without url", "sheets:\n  enabled: true\n"},
		{"telegram without chat", "telegram:\n  enabled: true\n  token: abc\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ModeChain, cfg.Fetch.Mode)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u@localhost/tenders")
	t.Setenv("TENDERS_TELEGRAM_TOKEN", "token")
	t.Setenv("TENDERS_TELEGRAM_CHAT_ID", "-1001")
	t.Setenv("TENDERS_LOG_LEVEL", "debug")

	cfg := GetDefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "postgres://u@localhost/tenders", cfg.Database.URL)
	assert.Equal(t, "token", cfg.Telegram.Token)
	assert.Equal(t, int64(-1001), cfg.Telegram.ChatID)
	assert.Equal(t, "debug", cfg.Log.Level)
}
