package filter

import (
	"testing"

	"tender-scraper/models"
)

func record(fields ...string) *models.Record {
	r := models.NewRecord()
	for i := 0; i+1 < len(fields); i += 2 {
		r.Set(fields[i], fields[i+1])
	}
	return r
}

func TestApplyFilters(t *testing.T) {
	records := []*models.Record{
		record("Title", "Road Repair RFP", "Status", "Open"),
		record("Title", "Snow Removal", "Status", "Cancelled"),
		record("Title", "", "Status", "Open"),
		record("Title", "IT consulting services", "Status", "Open"),
	}

	tests := []struct {
		name     string
		criteria Criteria
		want     []int
	}{
		{"no criteria keeps all", Criteria{}, []int{0, 1, 2, 3}},
		{"include", Criteria{Include: []string{"rfp", "CONSULTING"}}, []int{0, 3}},
		{"exclude", Criteria{Exclude: []string{"cancelled"}}, []int{0, 2, 3}},
		{"required", Criteria{Required: []string{"Title"}}, []int{0, 1, 3}},
		{"combined", Criteria{Include: []string{"open"}, Exclude: []string{"road"}, Required: []string{"Title"}}, []int{3}},
		{"blank keywords ignored", Criteria{Include: []string{"  "}}, []int{0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFilter(tt.criteria).ApplyFilters(records)
			if len(got) != len(tt.want) {
				t.Fatalf("ApplyFilters() returned %d records, want %d", len(got), len(tt.want))
			}
			for i, idx := range tt.want {
				if got[i] != records[idx] {
					t.Errorf("record %d = %q, want %q", i, got[i].Text("Title"), records[idx].Text("Title"))
				}
			}
		})
	}
}

func TestApplyFiltersIgnoresBookkeeping(t *testing.T) {
	r := record("Title", "Snow clearing services")
	r.Set(models.FieldSourceURL, "https://ontariotenders.app.jaggaer.com/esop/public")
	r.Set(models.FieldScrapedAt, "2024-03-01T10:00:00Z")
	records := []*models.Record{r}

	if got := NewFilter(Criteria{Include: []string{"tender"}}).ApplyFilters(records); len(got) != 0 {
		t.Errorf("include matched the source URL: kept %d records", len(got))
	}
	if got := NewFilter(Criteria{Exclude: []string{"jaggaer"}}).ApplyFilters(records); len(got) != 1 {
		t.Errorf("exclude matched the source URL: kept %d records", len(got))
	}
}
