package parser

import (
	"fmt"
	"net/url"
	"strings"

	"tender-scraper/models"

	"github.com/PuerkitoBio/goquery"
)

// HeaderSource tells where a HeaderSet came from.
type HeaderSource int

const (
	HeaderSynthesized HeaderSource = iota
	HeaderFromThead
	HeaderFromFirstRow
)

// HeaderSet is the ordered list of column names for a table candidate.
type HeaderSet struct {
	Names  []string
	Source HeaderSource
}

// Name returns the column name for cell position i. Positions beyond the
// known headers get a positional name.
func (h HeaderSet) Name(i int) string {
	if i < len(h.Names) {
		return h.Names[i]
	}
	return columnName(i)
}

func columnName(i int) string {
	return fmt.Sprintf("Column_%d", i+1)
}

// inferHeaders picks the header row of a table and returns the rows left to
// decompose as data.
func inferHeaders(c *Candidate, keywords []string) (HeaderSet, []*goquery.Selection) {
	thead := c.Table.ChildrenFiltered("thead").First()
	if thead.Length() > 0 {
		headRow := thead.ChildrenMatcher(rowMatcher).First()
		names := cellTexts(headRow)
		if len(names) > 0 {
			var data []*goquery.Selection
			for _, row := range c.Rows {
				if !row.Closest("thead").IsSelection(thead) {
					data = append(data, row)
				}
			}
			return HeaderSet{Names: uniqueNames(names), Source: HeaderFromThead}, data
		}
	}

	if len(c.Rows) > 0 {
		first := cellTexts(c.Rows[0])
		for _, text := range first {
			if containsAny(strings.ToLower(text), keywords) {
				return HeaderSet{Names: uniqueNames(first), Source: HeaderFromFirstRow}, c.Rows[1:]
			}
		}
	}

	maxCells := 0
	for _, row := range c.Rows {
		if n := row.ChildrenMatcher(cellMatcher).Length(); n > maxCells {
			maxCells = n
		}
	}
	names := make([]string, maxCells)
	for i := range names {
		names[i] = columnName(i)
	}
	return HeaderSet{Names: names, Source: HeaderSynthesized}, c.Rows
}

func cellTexts(row *goquery.Selection) []string {
	var out []string
	row.ChildrenMatcher(cellMatcher).Each(func(_ int, cell *goquery.Selection) {
		out = append(out, cleanText(cell.Text()))
	})
	return out
}

// uniqueNames replaces blank header cells with positional names and suffixes
// repeated names so every column keeps its own field.
func uniqueNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			n = columnName(i)
		}
		seen[n]++
		if seen[n] > 1 {
			n = fmt.Sprintf("%s_%d", n, seen[n])
		}
		out[i] = n
	}
	return out
}

// decomposeRow turns one table row into a record. It returns nil when every
// string field of the row, data attributes included, is blank.
func decomposeRow(row *goquery.Selection, headers HeaderSet, base *url.URL) *models.Record {
	cells := row.ChildrenMatcher(cellMatcher)
	if cells.Length() == 0 {
		return nil
	}

	rec := models.NewRecord()
	hasText := false
	cells.Each(func(i int, cell *goquery.Selection) {
		name := headers.Name(i)
		text := cleanText(cell.Text())
		if text != "" {
			hasText = true
		}
		rec.Set(name, text)

		if links := cellLinks(cell, base); len(links) > 0 {
			rec.Set(name+models.LinksSuffix, links)
		}
		for _, attr := range cell.Nodes[0].Attr {
			if strings.HasPrefix(attr.Key, "data-") {
				rec.Set(name+"_"+attr.Key, attr.Val)
				if strings.TrimSpace(attr.Val) != "" {
					hasText = true
				}
			}
		}
	})

	if !hasText {
		return nil
	}
	return rec
}

// cellLinks collects the anchors below s with hrefs resolved against base.
// Script pseudo-links are skipped.
func cellLinks(s *goquery.Selection, base *url.URL) []models.Link {
	var links []models.Link
	s.FindMatcher(anchorMatcher).Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		links = append(links, models.Link{
			Text: cleanText(a.Text()),
			URL:  resolveURL(base, href),
		})
	})
	return links
}

// resolveURL makes href absolute against base. Site-relative and
// protocol-relative forms are both handled by ResolveReference.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
