package commands

import (
	"fmt"
	"os"
	"time"

	"tender-scraper/export"
	"tender-scraper/parser"
	"tender-scraper/scraper"

	"github.com/spf13/cobra"
)

var (
	extractFile string
	extractBase string
	extractOut  string
)

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "Saved HTML page to extract from.")
	extractCmd.Flags().StringVar(&extractBase, "base", "", "URL the page was fetched from, used to resolve relative links.")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Write the records as JSON to this file. Use - for stdout.")
	extractCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract --file <page.html> [--base <url>] [--out <records.json>]",
	Short: "Extracts tender records from a saved page without touching the network.",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(extractFile)
		if err != nil {
			return fmt.Errorf("failed to read page: %w", err)
		}

		ex := parser.NewExtractor(cfg.Extract, scraper.NewLogObserver(logger))
		res, err := ex.ParseHTML(string(data), extractBase)
		if err != nil {
			return err
		}
		source := extractBase
		if source == "" {
			source = extractFile
		}
		parser.Annotate(res.Records, source, time.Now())

		out := cmd.OutOrStdout()
		if extractOut == "-" {
			return export.WriteJSON(out, res.Records)
		}

		fmt.Fprintf(out, "Strategy: %s\n", res.Strategy)
		if res.Strategy.Tabular() {
			fmt.Fprintf(out, "Table index: %d\n", res.TableIndex)
			fmt.Fprintf(out, "Headers: %v\n", res.Headers.Names)
		}
		fmt.Fprintf(out, "Records: %d\n", len(res.Records))
		export.PrintSample(out, res.Records, cfg.Output.PrintSample)

		if extractOut != "" {
			f, err := os.Create(extractOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", extractOut, err)
			}
			defer f.Close()
			if err := export.WriteJSON(f, res.Records); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", extractOut)
		}
		return nil
	},
}
