package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromedpFetcher implements the Fetcher interface using chromedp. Each
// fetch runs in its own browser process.
type ChromedpFetcher struct {
	cfg    BrowserConfig
	opts   []chromedp.ExecAllocatorOption
	logger *zap.Logger
}

// NewChromedpFetcher creates a new ChromedpFetcher instance
func NewChromedpFetcher(cfg BrowserConfig, logger *zap.Logger) *ChromedpFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if bin := findBrowserBin(cfg.Bin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	return &ChromedpFetcher{cfg: cfg, opts: opts, logger: logger}
}

// Fetch implements the Fetcher interface
func (cf *ChromedpFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, cf.opts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, cf.cfg.Timeout+cf.cfg.Settle)
	defer cancelTimeout()

	var html, location string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to navigate to %s: %v", ErrTransport, url, err)
	}

	tableCtx, cancelTable := context.WithTimeout(taskCtx, cf.cfg.TableWait)
	if err := chromedp.Run(tableCtx, chromedp.WaitReady("table", chromedp.ByQuery)); err != nil {
		cf.logger.Warn("no table appeared before timeout", zap.String("url", url), zap.Duration("wait", cf.cfg.TableWait))
	}
	cancelTable()

	err = chromedp.Run(taskCtx,
		chromedp.Sleep(cf.cfg.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}

	if location == "" {
		location = url
	}
	return &Page{
		URL:       url,
		FinalURL:  location,
		HTML:      html,
		Method:    MethodChromedp,
		FetchedAt: time.Now(),
	}, nil
}
