package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tender-scraper/export"
	"tender-scraper/fetcher"
	"tender-scraper/filter"
	"tender-scraper/metrics"
	"tender-scraper/models"
	"tender-scraper/parser"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Attempt outcomes
const (
	OutcomeOK        = "ok"
	OutcomeFiltered  = "filtered"  // records found, none survived the filters
	OutcomeEmpty     = "empty"     // page fetched, nothing extracted
	OutcomeSession   = "session"   // session rejected or expired
	OutcomeTransport = "transport" // fetch failed
	OutcomeCanceled  = "canceled"
)

// Sink receives every non-empty batch of records.
type Sink interface {
	Name() string
	Write(ctx context.Context, batch *models.Batch) error
}

// Options tune a Runner
type Options struct {
	SessionPhrases []string
	// DebugDir receives the raw markup of pages that yield no records.
	DebugDir      string
	SaveDebugHTML bool
	// ScrapeAll keeps going after the first URL that yields records.
	ScrapeAll bool
	Metrics   *metrics.Metrics
	Clock     func() time.Time
}

// Attempt is what happened to one candidate URL
type Attempt struct {
	URL       string
	Method    string
	Strategy  string
	Outcome   string
	Extracted int
	Kept      int
	Page      parser.PageInfo
	DebugFile string
	Duration  time.Duration
	Err       error
}

// Report summarises a run
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Attempts   []Attempt
	Records    []*models.Record
}

// Successful returns the attempts that delivered records
func (r *Report) Successful() []Attempt {
	var out []Attempt
	for _, a := range r.Attempts {
		if a.Outcome == OutcomeOK {
			out = append(out, a)
		}
	}
	return out
}

// Runner drives one scrape over a list of candidate URLs. Runs never
// overlap: a second call waits for the first to finish.
type Runner struct {
	fetcher   fetcher.Fetcher
	extractor *parser.Extractor
	filter    *filter.Filter
	sinks     []Sink
	opts      Options
	logger    *zap.Logger

	mu sync.Mutex
}

// NewRunner creates a Runner. A nil filter keeps every record.
func NewRunner(f fetcher.Fetcher, ex *parser.Extractor, flt *filter.Filter, opts Options, logger *zap.Logger, sinks ...Sink) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if flt == nil {
		flt = filter.NewFilter(filter.Criteria{})
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Runner{
		fetcher:   f,
		extractor: ex,
		filter:    flt,
		sinks:     sinks,
		opts:      opts,
		logger:    logger,
	}
}

// Run tries each URL in order. Fetch failures and session failures move on
// to the next URL; a page without records is saved for diagnosis. The run
// fails only when every URL failed to fetch.
func (r *Runner) Run(ctx context.Context, urls []string) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &Report{StartedAt: r.opts.Clock()}
	defer func() { report.FinishedAt = r.opts.Clock() }()

	var lastErr error
	fetchFailures := 0
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			r.opts.Metrics.IncRun("failed")
			return report, err
		}

		att := r.attempt(ctx, u)
		report.Attempts = append(report.Attempts, att.Attempt)

		switch att.Outcome {
		case OutcomeCanceled:
			r.opts.Metrics.IncRun("failed")
			return report, att.Err
		case OutcomeTransport:
			fetchFailures++
			lastErr = att.Err
			continue
		case OutcomeOK:
			report.Records = append(report.Records, att.batch.Records...)
			r.deliver(ctx, att.batch)
			if !r.opts.ScrapeAll {
				r.opts.Metrics.IncRun("ok")
				return report, nil
			}
		}
	}

	if len(urls) > 0 && fetchFailures == len(urls) {
		r.opts.Metrics.IncRun("failed")
		return report, fmt.Errorf("all %d candidate URLs failed: %w", len(urls), lastErr)
	}
	if len(report.Records) == 0 {
		r.opts.Metrics.IncRun("empty")
		r.logger.Warn("no records found on any candidate URL", zap.Int("urls", len(urls)))
	} else {
		r.opts.Metrics.IncRun("ok")
	}
	return report, nil
}

type attemptResult struct {
	Attempt
	batch *models.Batch
}

func (r *Runner) attempt(ctx context.Context, u string) attemptResult {
	log := r.logger.With(zap.String("url", u))
	res := attemptResult{Attempt: Attempt{URL: u}}

	start := time.Now()
	page, err := r.fetcher.Fetch(ctx, u)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		switch {
		case ctx.Err() != nil:
			res.Outcome = OutcomeCanceled
		case errors.Is(err, fetcher.ErrSessionInvalid):
			res.Outcome = OutcomeSession
		default:
			res.Outcome = OutcomeTransport
		}
		r.opts.Metrics.ObserveFetch(res.Outcome, res.Duration)
		log.Warn("fetch failed", zap.String("outcome", res.Outcome), zap.Error(err))
		return res
	}
	r.opts.Metrics.ObserveFetch(OutcomeOK, res.Duration)
	res.Method = page.Method

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		res.Outcome = OutcomeEmpty
		res.Err = fmt.Errorf("failed to parse HTML: %w", err)
		return res
	}

	res.Page = r.extractor.Inspect(doc, r.opts.SessionPhrases)
	log.Info("page fetched",
		zap.String("method", page.Method),
		zap.String("title", res.Page.Title),
		zap.Int("tables", res.Page.Tables),
		zap.Int("containers", res.Page.Containers),
		zap.Bool("search_interface", res.Page.HasSearchInterface()))

	base := page.FinalURL
	if base == "" {
		base = u
	}
	extracted := r.extractor.Extract(doc, base)
	res.Strategy = extracted.Strategy.String()
	res.Extracted = len(extracted.Records)

	if extracted.Empty() {
		res.Outcome = OutcomeEmpty
		if res.Page.SessionInvalid {
			res.Outcome = OutcomeSession
			res.Err = fmt.Errorf("%w: %s", fetcher.ErrSessionInvalid, u)
			log.Warn("session appears invalid, skipping URL")
		}
		res.DebugFile = r.saveDebug(u, page.HTML)
		return res
	}
	if res.Page.SessionInvalid {
		log.Info("page mentions a session problem but records were found")
	}

	scrapedAt := r.opts.Clock()
	parser.Annotate(extracted.Records, u, scrapedAt)
	kept := r.filter.ApplyFilters(extracted.Records)
	res.Kept = len(kept)
	r.opts.Metrics.AddRecords(res.Strategy, len(kept))

	log.Info("records extracted",
		zap.String("strategy", res.Strategy),
		zap.Int("extracted", res.Extracted),
		zap.Int("kept", res.Kept))

	if len(kept) == 0 {
		res.Outcome = OutcomeFiltered
		return res
	}

	res.Outcome = OutcomeOK
	res.batch = &models.Batch{
		SourceURL: u,
		Method:    page.Method,
		Strategy:  res.Strategy,
		ScrapedAt: scrapedAt,
		Records:   kept,
	}
	return res
}

func (r *Runner) saveDebug(u, html string) string {
	if !r.opts.SaveDebugHTML || r.opts.DebugDir == "" {
		return ""
	}
	path, err := export.SaveDebugHTML(r.opts.DebugDir, u, html, r.opts.Clock())
	if err != nil {
		r.logger.Warn("failed to save debug HTML", zap.String("url", u), zap.Error(err))
		return ""
	}
	r.logger.Info("saved page for inspection", zap.String("url", u), zap.String("path", path))
	return path
}

// deliver hands the batch to every sink. A failing sink is logged and does
// not stop the others.
func (r *Runner) deliver(ctx context.Context, batch *models.Batch) {
	for _, s := range r.sinks {
		if err := s.Write(ctx, batch); err != nil {
			r.opts.Metrics.IncSinkError(s.Name())
			r.logger.Error("sink failed", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}
