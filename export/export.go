package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"tender-scraper/models"
)

// TimestampLayout is used in every output file name
const TimestampLayout = "20060102_150405"

// Formats
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatSummary = "summary"
)

// FileName builds "<prefix>_<timestamp>.<ext>" inside dir.
func FileName(dir, prefix string, at time.Time, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", prefix, at.Format(TimestampLayout), ext))
}

// WriteJSON writes records as an indented JSON array
func WriteJSON(w io.Writer, records []*models.Record) error {
	if records == nil {
		records = []*models.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// ReadJSON loads records written by WriteJSON
func ReadJSON(r io.Reader) ([]*models.Record, error) {
	var records []*models.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

// Rows flattens records into a header row plus one row per record. The
// columns are the union of all keys; missing keys render as empty cells.
func Rows(records []*models.Record) (header []string, rows [][]string) {
	header = models.Columns(records)
	rows = make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(header))
		for i, col := range header {
			row[i] = r.Flat(col)
		}
		rows = append(rows, row)
	}
	return header, rows
}

// WriteCSV writes records as CSV with a header row
func WriteCSV(w io.Writer, records []*models.Record) error {
	header, rows := Rows(records)
	if len(header) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// WriteSummary writes the human readable run summary
func WriteSummary(w io.Writer, batch *models.Batch) error {
	var b strings.Builder
	b.WriteString("Ontario Tenders Scraping Summary\n")
	b.WriteString("================================\n")
	fmt.Fprintf(&b, "Scraped at: %s\n", batch.ScrapedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total records: %d\n", len(batch.Records))
	fmt.Fprintf(&b, "Source URL: %s\n", batch.SourceURL)
	fmt.Fprintf(&b, "Method: %s\n", batch.Method)
	fmt.Fprintf(&b, "Strategy: %s\n", batch.Strategy)

	cols := models.Columns(batch.Records)
	sort.Strings(cols)
	b.WriteString("\nColumns found:\n")
	for _, c := range cols {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	if len(batch.Records) > 0 {
		sample, err := json.MarshalIndent(batch.Records[0], "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode sample record: %w", err)
		}
		b.WriteString("\nSample record:\n")
		b.Write(sample)
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// DebugFileName names the raw markup dump for a page, e.g.
// "debug_esop_public_20240101_120000.html".
func DebugFileName(dir, pageURL string, at time.Time) string {
	label := strings.Trim(unsafeName.ReplaceAllString(pathOf(pageURL), "_"), "_")
	if label == "" {
		label = "root"
	}
	if len(label) > 60 {
		label = label[:60]
	}
	return FileName(dir, "debug_"+label, at, "html")
}

func pathOf(pageURL string) string {
	rest := pageURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[i:]
	}
	return ""
}

// SaveDebugHTML persists raw markup for offline diagnosis and returns the path.
func SaveDebugHTML(dir, pageURL, html string, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := DebugFileName(dir, pageURL, at)
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write debug HTML: %w", err)
	}
	return path, nil
}

// writeFile creates path and streams content into it through fn.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
