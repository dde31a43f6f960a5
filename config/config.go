package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tender-scraper/filter"
	"tender-scraper/parser"
	"tender-scraper/urlgen"

	"gopkg.in/yaml.v3"
)

// Fetch modes
const (
	ModeHTTP    = "http"    // plain HTTP only
	ModeBrowser = "browser" // headless browser only
	ModeChain   = "chain"   // HTTP first, browser when no table was served
	ModeManual  = "manual"  // visible browser, operator logs in by hand
)

// Browser engines
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

// Config is the full tool configuration
type Config struct {
	Portal   PortalConfig    `yaml:"portal"`
	Fetch    FetchConfig     `yaml:"fetch"`
	Extract  parser.Config   `yaml:"extract"`
	Filters  filter.Criteria `yaml:"filters"`
	Output   OutputConfig    `yaml:"output"`
	Sheets   SheetsConfig    `yaml:"sheets"`
	Database DatabaseConfig  `yaml:"database"`
	Telegram TelegramConfig  `yaml:"telegram"`
	Schedule ScheduleConfig  `yaml:"schedule"`
	Log      LogConfig       `yaml:"log"`
}

type PortalConfig struct {
	Base  string   `yaml:"base"`
	Paths []string `yaml:"paths"`
	// SessionPhrases mark a page as an expired or rejected session.
	SessionPhrases []string `yaml:"session_phrases"`
	// ScrapeAll visits every path instead of stopping at the first with records.
	ScrapeAll bool `yaml:"scrape_all"`
}

type FetchConfig struct {
	Mode           string            `yaml:"mode"`
	Engine         string            `yaml:"engine"`
	Timeout        time.Duration     `yaml:"timeout"`
	Attempts       int               `yaml:"attempts"`
	InitialBackoff time.Duration     `yaml:"initial_backoff"`
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	Headless       bool              `yaml:"headless"`
	UserDataDir    string            `yaml:"user_data_dir"`
	BrowserBin     string            `yaml:"browser_bin"`
	TableWait      time.Duration     `yaml:"table_wait"`
	Settle         time.Duration     `yaml:"settle"`
}

type OutputConfig struct {
	Dir           string   `yaml:"dir"`
	Prefix        string   `yaml:"prefix"`
	Formats       []string `yaml:"formats"`
	SaveDebugHTML bool     `yaml:"save_debug_html"`
	// PrintSample is the number of records echoed to the console after a run.
	PrintSample int `yaml:"print_sample"`
}

type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	SpreadsheetURL  string `yaml:"spreadsheet_url"`
	CredentialsPath string `yaml:"credentials_path"`
}

type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type ScheduleConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig loads configuration from a YAML file on top of the defaults and
// applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to the defaults
// otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		}
	}
	cfg := GetDefaultConfig()
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	paths := make([]string, len(urlgen.DefaultPaths))
	copy(paths, urlgen.DefaultPaths)

	return &Config{
		Portal: PortalConfig{
			Base:           urlgen.DefaultBase,
			Paths:          paths,
			SessionPhrases: append([]string(nil), parser.DefaultSessionPhrases...),
		},
		Fetch: FetchConfig{
			Mode:           ModeChain,
			Engine:         EngineRod,
			Timeout:        30 * time.Second,
			Attempts:       3,
			InitialBackoff: time.Second,
			Headless:       true,
			TableWait:      20 * time.Second,
			Settle:         5 * time.Second,
		},
		Extract: parser.DefaultConfig(),
		Output: OutputConfig{
			Dir:           "output",
			Prefix:        "ontario_tenders",
			Formats:       []string{"json", "csv", "summary"},
			SaveDebugHTML: true,
			PrintSample:   5,
		},
		Schedule: ScheduleConfig{
			Interval: 6 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// ApplyEnv overrides secrets and deployment settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("TENDERS_SPREADSHEET_URL"); v != "" {
		c.Sheets.SpreadsheetURL = v
	}
	if v := os.Getenv("TENDERS_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TENDERS_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("TENDERS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TENDERS_BROWSER_DATA_DIR"); v != "" {
		c.Fetch.UserDataDir = v
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Fetch.Mode {
	case ModeHTTP, ModeBrowser, ModeChain, ModeManual:
	default:
		return fmt.Errorf("unknown fetch mode %q", c.Fetch.Mode)
	}
	switch c.Fetch.Engine {
	case EngineRod, EngineChromedp:
	default:
		return fmt.Errorf("unknown browser engine %q", c.Fetch.Engine)
	}
	if c.Fetch.Mode == ModeManual && c.Fetch.Engine != EngineRod {
		return fmt.Errorf("manual mode requires the %s engine", EngineRod)
	}
	if strings.TrimSpace(c.Portal.Base) == "" {
		return fmt.Errorf("portal.base is required")
	}
	for _, f := range c.Output.Formats {
		switch f {
		case "json", "csv", "xlsx", "summary":
		default:
			return fmt.Errorf("unknown output format %q", f)
		}
	}
	if c.Sheets.Enabled && c.Sheets.SpreadsheetURL == "" {
		return fmt.Errorf("sheets.spreadsheet_url is required when sheets are enabled")
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram token and chat_id are required when telegram is enabled")
	}
	return nil
}
