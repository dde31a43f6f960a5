package commands

import (
	"context"

	"tender-scraper/config"
	"tender-scraper/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string
	jsonLogs   bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "tenders",
	Short: "tenders scrapes public tender listings into JSON, CSV, spreadsheets and Postgres.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadOrDefault(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}

		l, err := logging.New(loaded.Log.Level, !jsonLogs)
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file. Defaults are used when it does not exist.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error).")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log as JSON instead of human readable console output.")
}

// ExecuteContext runs the command selected by the process arguments. Cobra
// has already printed a returned error.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	logger.Sync()
	return err
}
