package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tender-scraper/models"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// CredentialsEnv holds the service account JSON when no credentials file is configured.
const CredentialsEnv = "GOOGLE_SHEETS_CREDENTIALS"

// sheet tab titles are limited to 100 characters
const maxSheetName = 100

// Writer writes record batches to a Google spreadsheet, one tab per batch.
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewWriter creates a writer authenticated with a service account. The
// credentials come from credentialsPath or, when empty, from CredentialsEnv.
func NewWriter(ctx context.Context, spreadsheetID, credentialsPath string, logger *zap.Logger) (*Writer, error) {
	credsJSON, err := loadCredentials(credentialsPath)
	if err != nil {
		return nil, err
	}
	return newWriter(ctx, spreadsheetID, logger, option.WithCredentialsJSON(credsJSON))
}

func newWriter(ctx context.Context, spreadsheetID string, logger *zap.Logger, opts ...option.ClientOption) (*Writer, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Writer{service: service, spreadsheetID: spreadsheetID, logger: logger}, nil
}

func loadCredentials(path string) ([]byte, error) {
	var credsJSON []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	} else {
		env := strings.TrimSpace(os.Getenv(CredentialsEnv))
		if env == "" {
			return nil, fmt.Errorf("credentials not found: %s is empty or not set", CredentialsEnv)
		}
		credsJSON = []byte(env)
	}

	var creds struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON: %w", err)
	}
	if creds.Type != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file, got type %q", creds.Type)
	}
	return credsJSON, nil
}

func (w *Writer) Name() string { return "sheets" }

// Write adds a new tab named after the batch time and fills it.
func (w *Writer) Write(ctx context.Context, batch *models.Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}
	name := "Tenders " + batch.ScrapedAt.Format("2006-01-02 15.04.05")
	_, _, err := w.CreateSheetAndWriteRecords(ctx, name, batch)
	return err
}

// CreateSheetAndWriteRecords inserts a tab at index 0 and writes a metadata
// row, a header row and one row per record. It returns the final tab title
// and its sheet ID (gid).
func (w *Writer) CreateSheetAndWriteRecords(ctx context.Context, sheetName string, batch *models.Batch) (string, int64, error) {
	sheetName = sanitizeSheetName(sheetName)

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheetName, Index: 0},
			},
		}},
	}
	resp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	var sheetID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	w.logger.Info("created sheet", zap.String("sheet", sheetName), zap.Int64("sheet_id", sheetID))

	vr := &sheets.ValueRange{Values: buildValues(batch)}
	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, sheetRange(sheetName), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to write to sheet: %w", err)
	}

	w.logger.Info("wrote records to sheet",
		zap.String("sheet", sheetName),
		zap.Int("records", len(batch.Records)),
		zap.String("url", SheetURL(w.spreadsheetID, sheetID)))
	return sheetName, sheetID, nil
}

// buildValues lays out the tab: metadata, header, then records.
func buildValues(batch *models.Batch) [][]interface{} {
	header := models.Columns(batch.Records)
	values := make([][]interface{}, 0, len(batch.Records)+2)

	meta := []interface{}{"URL", batch.SourceURL}
	if batch.Strategy != "" {
		meta = append(meta, "Strategy", batch.Strategy)
	}
	if batch.Method != "" {
		meta = append(meta, "Method", batch.Method)
	}
	values = append(values, meta)

	hrow := make([]interface{}, len(header))
	for i, h := range header {
		hrow[i] = h
	}
	values = append(values, hrow)

	for _, r := range batch.Records {
		row := make([]interface{}, len(header))
		for i, col := range header {
			row[i] = r.Flat(col)
		}
		values = append(values, row)
	}
	return values
}

func sheetRange(name string) string {
	return fmt.Sprintf("'%s'!A1", strings.ReplaceAll(name, "'", "''"))
}

// sanitizeSheetName removes characters Google Sheets rejects in tab titles
func sanitizeSheetName(name string) string {
	result := name
	for _, char := range []string{"/", "\\", "?", "*", "[", "]", ":"} {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if len(result) > maxSheetName {
		result = strings.TrimSpace(result[:maxSheetName])
	}
	if result == "" {
		result = "Sheet1"
	}
	return result
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
// such as https://docs.google.com/spreadsheets/d/ID/edit?usp=sharing. A bare
// ID is returned unchanged.
func ExtractSpreadsheetID(url string) string {
	url = strings.TrimSpace(url)
	parts := strings.SplitN(url, "/d/", 2)
	if len(parts) < 2 {
		if strings.ContainsAny(url, "/?") {
			return ""
		}
		return url
	}

	id := parts[1]
	if i := strings.IndexAny(id, "/?#"); i != -1 {
		id = id[:i]
	}
	return id
}

// SheetURL links directly to one tab of a spreadsheet
func SheetURL(spreadsheetID string, sheetID int64) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", spreadsheetID, sheetID)
}
