package export

import (
	"io"

	"tender-scraper/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// PrintSample renders up to limit records as a table on w.
func PrintSample(w io.Writer, records []*models.Record, limit int) {
	if limit <= 0 || len(records) == 0 {
		return
	}
	if limit > len(records) {
		limit = len(records)
	}
	sample := records[:limit]

	var cols []string
	for _, c := range models.Columns(sample) {
		if !models.IsBookkeeping(c) {
			cols = append(cols, c)
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := table.Row{"#"}
	for _, c := range cols {
		header = append(header, c)
	}
	t.AppendHeader(header)

	for i, r := range sample {
		row := table.Row{i + 1}
		for _, c := range cols {
			row = append(row, text.Trim(r.Flat(c), 60))
		}
		t.AppendRow(row)
	}

	t.SetCaption("%d of %d records", limit, len(records))
	t.SetStyle(table.StyleRounded)
	t.Render()
}
