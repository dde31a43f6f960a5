package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var (
	tableMatcher     = cascadia.MustCompile("table")
	rowMatcher       = cascadia.MustCompile("tr")
	cellMatcher      = cascadia.MustCompile("td, th")
	anchorMatcher    = cascadia.MustCompile("a[href]")
	containerMatcher = cascadia.MustCompile("div, li, article")
	looseMatcher     = cascadia.MustCompile("p, div, span, td, li, h1, h2, h3")
	scriptMatcher    = cascadia.MustCompile("script")
)

// Candidate is the markup substructure chosen as the data source for one
// extraction call.
type Candidate struct {
	Strategy Strategy

	// Table is set for tabular strategies.
	Table *goquery.Selection
	// TableIndex is the position of Table among all tables in the document.
	TableIndex int
	// Rows holds Table's own rows, excluding rows of nested tables.
	Rows []*goquery.Selection

	// Elements is set for container and loose text strategies.
	Elements *goquery.Selection

	// Scripts holds script bodies for the script JSON strategy.
	Scripts []string
}

// Locator is one step of the discovery cascade. Locate returns nil when the
// strategy finds nothing.
type Locator interface {
	Strategy() Strategy
	Locate(doc *goquery.Document) *Candidate
}

type structuralLocator struct{ cfg Config }

func (l structuralLocator) Strategy() Strategy { return StrategyStructural }

func (l structuralLocator) Locate(doc *goquery.Document) *Candidate {
	var found *Candidate
	doc.FindMatcher(tableMatcher).EachWithBreak(func(i int, t *goquery.Selection) bool {
		class := strings.ToLower(t.AttrOr("class", ""))
		id := strings.ToLower(t.AttrOr("id", ""))
		if containsAny(class, l.cfg.TableClassMarkers) || containsAny(id, l.cfg.TableIDMarkers) {
			found = tableCandidate(StrategyStructural, t, i)
			return false
		}
		return true
	})
	return found
}

type contentLocator struct{ cfg Config }

func (l contentLocator) Strategy() Strategy { return StrategyContent }

func (l contentLocator) Locate(doc *goquery.Document) *Candidate {
	var found *Candidate
	doc.FindMatcher(tableMatcher).EachWithBreak(func(i int, t *goquery.Selection) bool {
		if containsAny(strings.ToLower(t.Text()), l.cfg.ContentKeywords) {
			found = tableCandidate(StrategyContent, t, i)
			return false
		}
		return true
	})
	return found
}

type largestTableLocator struct{}

func (largestTableLocator) Strategy() Strategy { return StrategyLargestTable }

func (largestTableLocator) Locate(doc *goquery.Document) *Candidate {
	var best *Candidate
	doc.FindMatcher(tableMatcher).Each(func(i int, t *goquery.Selection) {
		c := tableCandidate(StrategyLargestTable, t, i)
		// strict comparison keeps the first table on ties
		if len(c.Rows) > 0 && (best == nil || len(c.Rows) > len(best.Rows)) {
			best = c
		}
	})
	return best
}

type containerLocator struct{ cfg Config }

func (l containerLocator) Strategy() Strategy { return StrategyContainer }

func (l containerLocator) Locate(doc *goquery.Document) *Candidate {
	if doc.FindMatcher(tableMatcher).Length() > 0 {
		return nil
	}
	elems := keywordClassed(doc.Selection, l.cfg.ContainerKeywords)
	if elems.Length() == 0 {
		return nil
	}
	return &Candidate{Strategy: StrategyContainer, Elements: elems, TableIndex: -1}
}

type looseTextLocator struct{ cfg Config }

func (l looseTextLocator) Strategy() Strategy { return StrategyLooseText }

func (l looseTextLocator) Locate(doc *goquery.Document) *Candidate {
	elems := doc.FindMatcher(looseMatcher).FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		return len(text) > l.cfg.MinLooseText && containsAny(strings.ToLower(text), l.cfg.LooseKeywords)
	})
	if elems.Length() == 0 {
		return nil
	}
	return &Candidate{Strategy: StrategyLooseText, Elements: elems, TableIndex: -1}
}

type scriptJSONLocator struct{}

func (scriptJSONLocator) Strategy() Strategy { return StrategyScriptJSON }

func (scriptJSONLocator) Locate(doc *goquery.Document) *Candidate {
	var bodies []string
	doc.FindMatcher(scriptMatcher).Each(func(_ int, s *goquery.Selection) {
		if body := s.Text(); strings.Contains(body, "{") {
			bodies = append(bodies, body)
		}
	})
	if len(bodies) == 0 {
		return nil
	}
	return &Candidate{Strategy: StrategyScriptJSON, Scripts: bodies, TableIndex: -1}
}

func tableCandidate(s Strategy, t *goquery.Selection, index int) *Candidate {
	return &Candidate{
		Strategy:   s,
		Table:      t,
		TableIndex: index,
		Rows:       ownRows(t),
	}
}

// ownRows returns the tr elements that belong to t itself and not to a table
// nested inside one of its cells.
func ownRows(t *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	t.FindMatcher(rowMatcher).Each(func(_ int, tr *goquery.Selection) {
		if tr.Closest("table").IsSelection(t) {
			rows = append(rows, tr)
		}
	})
	return rows
}

func keywordClassed(root *goquery.Selection, keywords []string) *goquery.Selection {
	return root.FindMatcher(containerMatcher).FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, ok := s.Attr("class")
		return ok && containsAny(strings.ToLower(class), keywords)
	})
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// cleanText trims s and collapses inner whitespace runs to single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
