package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSessionPhrases are page texts that signal an expired or rejected session.
var DefaultSessionPhrases = []string{"session is invalid", "expired", "unauthorized", "access denied"}

// PageInfo summarises what a fetched page looks like before extraction.
type PageInfo struct {
	Title            string
	Tables           int
	Containers       int
	Forms            int
	SearchInputs     int
	HasDomainContent bool
	SessionInvalid   bool
}

// Score ranks pages when probing candidate URLs.
func (p PageInfo) Score() int {
	return p.Tables + p.Containers
}

// HasSearchInterface reports whether the page offers a search form.
func (p PageInfo) HasSearchInterface() bool {
	return p.Forms > 0 && p.SearchInputs > 0
}

// Inspect collects page diagnostics using the extractor's keyword lists.
func (e *Extractor) Inspect(doc *goquery.Document, sessionPhrases []string) PageInfo {
	if len(sessionPhrases) == 0 {
		sessionPhrases = DefaultSessionPhrases
	}
	text := strings.ToLower(cleanText(doc.Find("body").Text()))

	return PageInfo{
		Title:            cleanText(doc.Find("title").First().Text()),
		Tables:           doc.FindMatcher(tableMatcher).Length(),
		Containers:       keywordClassed(doc.Selection, e.cfg.ContainerKeywords).Length(),
		Forms:            doc.Find("form").Length(),
		SearchInputs:     searchInputs(doc).Length(),
		HasDomainContent: containsAny(text, e.cfg.ContentKeywords),
		SessionInvalid:   containsAny(text, sessionPhrases),
	}
}

// InspectHTML parses htmlContent and inspects it.
func (e *Extractor) InspectHTML(htmlContent string, sessionPhrases []string) (PageInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return PageInfo{}, err
	}
	return e.Inspect(doc, sessionPhrases), nil
}

func searchInputs(doc *goquery.Document) *goquery.Selection {
	return doc.Find("input").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(s.AttrOr("type", ""), "search") {
			return true
		}
		for _, attr := range []string{"name", "id", "placeholder"} {
			if strings.Contains(strings.ToLower(s.AttrOr(attr, "")), "search") {
				return true
			}
		}
		return false
	})
}
