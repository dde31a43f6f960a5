package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tender-scraper/export"
	"tender-scraper/models"
	"tender-scraper/sheets"

	"github.com/spf13/cobra"
)

const targetSheets = "sheets"

var (
	exportFrom string
	exportTo   string
	exportOut  string
)

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "JSON records file written by scrape or extract.")
	exportCmd.Flags().StringVar(&exportTo, "to", export.FormatCSV, "Target format: csv, xlsx or sheets.")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file. Defaults to the input name with the new extension.")
	exportCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export --from <records.json> --to <csv|xlsx|sheets> [--out <path>]",
	Short: "Re-exports saved records to another format or to Google Sheets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := readRecords(exportFrom)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		switch exportTo {
		case targetSheets:
			w, err := sheets.NewWriter(cmd.Context(), sheets.ExtractSpreadsheetID(cfg.Sheets.SpreadsheetURL), cfg.Sheets.CredentialsPath, logger.Named("sheets"))
			if err != nil {
				return err
			}
			batch := batchFromRecords(records)
			name, id, err := w.CreateSheetAndWriteRecords(cmd.Context(), "Export "+batch.ScrapedAt.Format("2006-01-02 15.04.05"), batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %d records to sheet %q: %s\n", len(records), name,
				sheets.SheetURL(sheets.ExtractSpreadsheetID(cfg.Sheets.SpreadsheetURL), id))
			return nil

		case export.FormatCSV, export.FormatXLSX:
			path := exportOut
			if path == "" {
				path = strings.TrimSuffix(exportFrom, filepath.Ext(exportFrom)) + "." + exportTo
			}
			if err := writeRecords(path, exportTo, records); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %d records to %s\n", len(records), path)
			return nil

		default:
			return fmt.Errorf("unknown export target %q", exportTo)
		}
	},
}

func readRecords(path string) ([]*models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records: %w", err)
	}
	defer f.Close()
	return export.ReadJSON(f)
}

func writeRecords(path, format string, records []*models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	var write func(io.Writer, []*models.Record) error = export.WriteCSV
	if format == export.FormatXLSX {
		write = export.WriteXLSX
	}
	if err := write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// batchFromRecords rebuilds batch metadata from the bookkeeping fields of
// saved records.
func batchFromRecords(records []*models.Record) *models.Batch {
	b := &models.Batch{Records: records, ScrapedAt: time.Now()}
	if len(records) == 0 {
		return b
	}
	b.SourceURL = records[0].Text(models.FieldSourceURL)
	if t, err := time.Parse(time.RFC3339, records[0].Text(models.FieldScrapedAt)); err == nil {
		b.ScrapedAt = t
	}
	return b
}
