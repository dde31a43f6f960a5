package models

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Batch is the set of records produced from one page, handed to every sink.
type Batch struct {
	SourceURL string
	Method    string
	Strategy  string
	ScrapedAt time.Time
	Records   []*Record
}

// Columns returns the union of record keys in first-seen order.
func Columns(records []*Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for _, k := range r.keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// Flat renders the value under key as a single cell for tabular outputs.
// Missing keys render as "", link lists as JSON.
func (r *Record) Flat(key string) string {
	v, ok := r.values[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case []string:
		return strings.Join(t, " ")
	default:
		var buf bytes.Buffer
		if err := encodeInto(&buf, t); err != nil {
			return fmt.Sprint(t)
		}
		return buf.String()
	}
}

var bookkeeping = map[string]bool{
	FieldScrapedAt:      true,
	FieldSourceURL:      true,
	FieldTableIndex:     true,
	FieldRowIndex:       true,
	FieldContainerIndex: true,
	FieldContentIndex:   true,
	FieldElementType:    true,
	FieldElementClass:   true,
	FieldDataSource:     true,
}

// IsBookkeeping reports whether key was added by the scraper rather than
// taken from the page.
func IsBookkeeping(key string) bool {
	return bookkeeping[key]
}

// Summary returns the first non-empty page value of the record, which for
// table rows is normally the tender title.
func (r *Record) Summary() string {
	for _, k := range r.keys {
		if IsBookkeeping(k) {
			continue
		}
		if s, ok := r.values[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// FirstLink returns the first link found in any cell, if there is one.
func (r *Record) FirstLink() (Link, bool) {
	for _, k := range r.keys {
		if links, ok := r.values[k].([]Link); ok && len(links) > 0 {
			return links[0], true
		}
	}
	return Link{}, false
}
