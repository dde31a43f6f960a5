package commands

import (
	"fmt"

	"tender-scraper/export"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	scrapeURLs []string
	scrapeAll  bool
	scrapeMode string
)

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeURLs, "url", nil, "Scrape these URLs instead of the configured portal paths.")
	scrapeCmd.Flags().BoolVar(&scrapeAll, "all", false, "Visit every URL instead of stopping at the first one with records.")
	scrapeCmd.Flags().StringVar(&scrapeMode, "mode", "", "Override the fetch mode (http, browser, chain, manual).")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--url <url>]... [--all] [--mode <mode>]",
	Short: "Runs one scrape over the candidate listing pages and writes every configured output.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if scrapeAll {
			cfg.Portal.ScrapeAll = true
		}
		if scrapeMode != "" {
			cfg.Fetch.Mode = scrapeMode
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		urls, err := candidateURLs(cfg, scrapeURLs)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		report, files, err := a.runOnce(ctx, urls)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(report.Records) == 0 {
			fmt.Fprintln(out, "No tender records found.")
			for _, att := range report.Attempts {
				if att.DebugFile != "" {
					fmt.Fprintf(out, "Saved %s for inspection\n", att.DebugFile)
				}
			}
			return nil
		}

		fmt.Fprintf(out, "Extracted %d tender records\n", len(report.Records))
		export.PrintSample(out, report.Records, cfg.Output.PrintSample)
		for _, f := range files.Files() {
			fmt.Fprintf(out, "Wrote %s\n", f)
		}
		logger.Info("scrape finished",
			zap.Int("records", len(report.Records)),
			zap.Int("attempts", len(report.Attempts)),
			zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
		return nil
	},
}
