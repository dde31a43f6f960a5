package filter

import (
	"strings"

	"tender-scraper/models"
)

// Criteria selects which records are kept. Keyword matching is
// case-insensitive over all text fields of a record.
type Criteria struct {
	Include  []string `yaml:"include"`
	Exclude  []string `yaml:"exclude"`
	Required []string `yaml:"required"`
}

// Empty reports whether the criteria keep every record
func (c Criteria) Empty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Required) == 0
}

// Filter applies filter criteria to records
type Filter struct {
	include  []string
	exclude  []string
	required []string
}

// NewFilter creates a new Filter instance
func NewFilter(c Criteria) *Filter {
	return &Filter{
		include:  lowerAll(c.Include),
		exclude:  lowerAll(c.Exclude),
		required: c.Required,
	}
}

// ApplyFilters returns the records that match the criteria, in input order.
func (f *Filter) ApplyFilters(records []*models.Record) []*models.Record {
	var filtered []*models.Record
	for _, r := range records {
		if f.matches(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func (f *Filter) matches(r *models.Record) bool {
	for _, field := range f.required {
		if strings.TrimSpace(r.Text(field)) == "" {
			return false
		}
	}

	text := strings.ToLower(r.JoinedText())
	for _, k := range f.exclude {
		if strings.Contains(text, k) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}
	for _, k := range f.include {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
