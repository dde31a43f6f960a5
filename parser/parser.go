package parser

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"tender-scraper/models"

	"github.com/PuerkitoBio/goquery"
)

// Observer receives progress events from an extraction call. Implementations
// must not modify the document.
type Observer interface {
	StrategyTried(s Strategy, found bool)
	CandidateSelected(c *Candidate, headers HeaderSet)
	RowDropped(s Strategy, index int)
	Extracted(s Strategy, records int)
}

// NopObserver ignores all events
type NopObserver struct{}

func (NopObserver) StrategyTried(Strategy, bool)            {}
func (NopObserver) CandidateSelected(*Candidate, HeaderSet) {}
func (NopObserver) RowDropped(Strategy, int)                {}
func (NopObserver) Extracted(Strategy, int)                 {}

// Result is the outcome of one extraction call
type Result struct {
	Records    []*models.Record
	Strategy   Strategy
	TableIndex int
	Headers    HeaderSet
}

// Empty reports whether no records were produced
func (r *Result) Empty() bool {
	return len(r.Records) == 0
}

// Extractor locates the tender table in a page and flattens it into records.
// It is a pure function of its input and safe for concurrent use.
type Extractor struct {
	cfg      Config
	obs      Observer
	locators []Locator
}

// NewExtractor creates an Extractor. A nil observer is replaced by NopObserver.
func NewExtractor(cfg Config, obs Observer) *Extractor {
	if obs == nil {
		obs = NopObserver{}
	}
	cfg = cfg.withDefaults()

	locators := []Locator{
		structuralLocator{cfg: cfg},
		contentLocator{cfg: cfg},
		largestTableLocator{},
		containerLocator{cfg: cfg},
		looseTextLocator{cfg: cfg},
	}
	if cfg.ScanScripts {
		locators = append(locators, scriptJSONLocator{})
	}

	return &Extractor{cfg: cfg, obs: obs, locators: locators}
}

// Config returns the effective configuration
func (e *Extractor) Config() Config {
	return e.cfg
}

// ParseHTML parses htmlContent and extracts records, resolving links against baseURL.
func (e *Extractor) ParseHTML(htmlContent, baseURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return e.Extract(doc, baseURL), nil
}

// Extract runs the discovery cascade over doc. The first strategy whose
// candidate yields at least one record wins; when none does the result is
// empty.
func (e *Extractor) Extract(doc *goquery.Document, baseURL string) *Result {
	base := parseBase(baseURL)

	for _, loc := range e.locators {
		c := loc.Locate(doc)
		e.obs.StrategyTried(loc.Strategy(), c != nil)
		if c == nil {
			continue
		}

		res := e.decompose(c, base)
		e.obs.Extracted(c.Strategy, len(res.Records))
		if !res.Empty() {
			return res
		}
	}

	return &Result{Strategy: StrategyNone, TableIndex: -1}
}

func (e *Extractor) decompose(c *Candidate, base *url.URL) *Result {
	res := &Result{Strategy: c.Strategy, TableIndex: c.TableIndex}

	switch {
	case c.Strategy.Tabular():
		headers, rows := inferHeaders(c, e.cfg.HeaderKeywords)
		res.Headers = headers
		e.obs.CandidateSelected(c, headers)
		for i, row := range rows {
			rec := decomposeRow(row, headers, base)
			if rec == nil {
				e.obs.RowDropped(c.Strategy, i)
				continue
			}
			rec.Set(models.FieldTableIndex, c.TableIndex)
			rec.Set(models.FieldRowIndex, i)
			res.Records = append(res.Records, rec)
		}
	case c.Strategy == StrategyContainer:
		e.obs.CandidateSelected(c, HeaderSet{})
		res.Records = e.containerRecords(c, base)
	case c.Strategy == StrategyLooseText:
		e.obs.CandidateSelected(c, HeaderSet{})
		res.Records = e.looseTextRecords(c, base)
	case c.Strategy == StrategyScriptJSON:
		e.obs.CandidateSelected(c, HeaderSet{})
		res.Records = e.scriptRecords(c)
	}

	return res
}

// Annotate stamps every record with the capture time and source URL.
func Annotate(records []*models.Record, sourceURL string, at time.Time) {
	stamp := at.Format(time.RFC3339)
	for _, r := range records {
		r.Set(models.FieldScrapedAt, stamp)
		r.Set(models.FieldSourceURL, sourceURL)
	}
}

func parseBase(baseURL string) *url.URL {
	if baseURL == "" {
		return nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	return u
}
