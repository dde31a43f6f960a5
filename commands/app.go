package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"tender-scraper/config"
	"tender-scraper/db"
	"tender-scraper/export"
	"tender-scraper/fetcher"
	"tender-scraper/filter"
	"tender-scraper/metrics"
	"tender-scraper/notify"
	"tender-scraper/parser"
	"tender-scraper/scraper"
	"tender-scraper/sheets"
	"tender-scraper/urlgen"

	"go.uber.org/zap"
)

// app holds everything a scrape needs, built once per command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	fetcher   fetcher.Fetcher
	extractor *parser.Extractor
	db        *db.DB
	sheets    *sheets.Writer
	notifier  *notify.Notifier
}

// newApp wires the fetcher and the optional outputs. A failing optional
// output is logged and left out.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*app, error) {
	f, err := buildFetcher(cfg.Fetch, logger)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		fetcher:   f,
		extractor: parser.NewExtractor(cfg.Extract, scraper.NewLogObserver(logger)),
	}

	if cfg.Database.Enabled {
		database, err := db.NewDB(ctx, cfg.Database.URL, logger.Named("db"))
		if err != nil {
			logger.Error("database disabled", zap.Error(err))
		} else {
			a.db = database
		}
	}
	if cfg.Sheets.Enabled {
		w, err := sheets.NewWriter(ctx, sheets.ExtractSpreadsheetID(cfg.Sheets.SpreadsheetURL), cfg.Sheets.CredentialsPath, logger.Named("sheets"))
		if err != nil {
			logger.Error("google sheets disabled", zap.Error(err))
		} else {
			a.sheets = w
		}
	}
	if cfg.Telegram.Enabled {
		n, err := notify.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, logger.Named("telegram"))
		if err != nil {
			logger.Error("telegram notifications disabled", zap.Error(err))
		} else {
			a.notifier = n
		}
	}
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if c, ok := a.fetcher.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// buildFetcher picks the fetch path for the configured mode
func buildFetcher(fc config.FetchConfig, logger *zap.Logger) (fetcher.Fetcher, error) {
	httpF := func() fetcher.Fetcher {
		return fetcher.NewHTTPFetcher(fetcher.HTTPConfig{
			UserAgent:      fc.UserAgent,
			Headers:        fc.Headers,
			Timeout:        fc.Timeout,
			Attempts:       fc.Attempts,
			InitialBackoff: fc.InitialBackoff,
		}, logger.Named("http"))
	}
	bc := fetcher.BrowserConfig{
		Headless:    fc.Headless,
		UserDataDir: fc.UserDataDir,
		Bin:         fc.BrowserBin,
		UserAgent:   fc.UserAgent,
		Timeout:     fc.Timeout,
		TableWait:   fc.TableWait,
		Settle:      fc.Settle,
	}
	browser := func() (fetcher.Fetcher, error) {
		if fc.Engine == config.EngineChromedp {
			return fetcher.NewChromedpFetcher(bc, logger.Named("chromedp")), nil
		}
		return fetcher.NewRodFetcher(bc, nil, logger.Named("rod"))
	}

	switch fc.Mode {
	case config.ModeHTTP:
		return httpF(), nil
	case config.ModeBrowser:
		return browser()
	case config.ModeChain:
		b, err := browser()
		if err != nil {
			return nil, err
		}
		return fetcher.NewChain(fetcher.HasTable, logger.Named("chain"), httpF(), b), nil
	case config.ModeManual:
		op := &fetcher.Operator{In: os.Stdin, Out: os.Stderr}
		return fetcher.NewRodFetcher(bc, op, logger.Named("rod"))
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", fc.Mode)
	}
}

// candidateURLs returns the override list when given, else the configured
// portal paths.
func candidateURLs(cfg *config.Config, override []string) ([]string, error) {
	if len(override) > 0 {
		return override, nil
	}
	cands, err := urlgen.CandidateURLs(cfg.Portal.Base, cfg.Portal.Paths)
	if err != nil {
		return nil, err
	}
	return urlgen.URLs(cands), nil
}

func (a *app) newRunner(sinks ...scraper.Sink) *scraper.Runner {
	return scraper.NewRunner(a.fetcher, a.extractor, filter.NewFilter(a.cfg.Filters), scraper.Options{
		SessionPhrases: a.cfg.Portal.SessionPhrases,
		DebugDir:       a.cfg.Output.Dir,
		SaveDebugHTML:  a.cfg.Output.SaveDebugHTML,
		ScrapeAll:      a.cfg.Portal.ScrapeAll,
		Metrics:        a.metrics,
	}, a.logger, sinks...)
}

// runOnce performs one scrape with every configured output and records it
// in the database when one is available.
func (a *app) runOnce(ctx context.Context, urls []string) (*scraper.Report, *export.FileSink, error) {
	files := export.NewFileSink(a.cfg.Output.Dir, a.cfg.Output.Prefix, a.cfg.Output.Formats, a.logger.Named("files"))
	sinks := []scraper.Sink{files}
	if a.sheets != nil {
		sinks = append(sinks, a.sheets)
	}

	var run *db.Run
	if a.db != nil {
		r, err := a.db.CreateRun(ctx, urls)
		if err != nil {
			a.logger.Error("failed to record run start", zap.Error(err))
		} else {
			run = r
			sinks = append(sinks, a.db.Sink(run.ID))
		}
	}
	if a.notifier != nil {
		sinks = append(sinks, a.notifier)
	}

	report, err := a.newRunner(sinks...).Run(ctx, urls)

	if run != nil {
		// the run context may already be canceled
		if ferr := a.db.FinishRun(context.WithoutCancel(ctx), run.ID, runResult(report, err)); ferr != nil {
			a.logger.Error("failed to record run result", zap.Error(ferr))
		}
	}
	if a.notifier != nil && ctx.Err() == nil {
		var nerr error
		switch {
		case err != nil:
			nerr = a.notifier.NotifyFailure(ctx, err)
		case len(report.Records) == 0:
			nerr = a.notifier.Send(ctx, fmt.Sprintf("⚠️ No tender records found on %d candidate URLs", len(urls)))
		}
		if nerr != nil {
			a.logger.Error("failed to send notification", zap.Error(nerr))
		}
	}
	return report, files, err
}

func runResult(report *scraper.Report, err error) db.RunResult {
	res := db.RunResult{Status: db.RunOK, Err: err}
	if report != nil {
		res.RecordsCount = len(report.Records)
		if ok := report.Successful(); len(ok) > 0 {
			res.SourceURL = ok[0].URL
			res.Strategy = ok[0].Strategy
		}
	}
	switch {
	case err != nil:
		res.Status = db.RunFailed
	case res.RecordsCount == 0:
		res.Status = db.RunEmpty
	}
	return res
}
