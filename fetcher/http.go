package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// DefaultUserAgent is sent unless the configuration overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPConfig configures the plain HTTP fetcher
type HTTPConfig struct {
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
	// Attempts is the total number of tries, including the first one.
	Attempts       int
	InitialBackoff time.Duration
}

func (c HTTPConfig) withDefaults() HTTPConfig {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	return c
}

// browserHeaders mimic a desktop browser so the portal serves its normal markup.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// HTTPFetcher implements the Fetcher interface using colly
type HTTPFetcher struct {
	collector *colly.Collector
	cfg       HTTPConfig
	logger    *zap.Logger
}

// NewHTTPFetcher creates a new HTTPFetcher instance
func NewHTTPFetcher(cfg HTTPConfig, logger *zap.Logger) *HTTPFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(cfg.Timeout)

	return &HTTPFetcher{
		collector: c,
		cfg:       cfg,
		logger:    logger,
	}
}

// Fetch implements the Fetcher interface. Transport failures and 5xx
// responses are retried with exponential backoff; 401 and 403 fail at once
// with ErrSessionInvalid.
func (hf *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = hf.cfg.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(hf.cfg.Attempts-1)), ctx)

	attempt := 0
	operation := func() (*Page, error) {
		attempt++
		return hf.fetchOnce(ctx, url)
	}
	notify := func(err error, wait time.Duration) {
		hf.logger.Warn("fetch attempt failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	page, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (hf *HTTPFetcher) fetchOnce(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, backoff.Permanent(err)
	}

	c := hf.collector.Clone()
	c.Context = ctx
	c.AllowURLRevisit = true
	c.SetRequestTimeout(hf.cfg.Timeout)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range browserHeaders {
			r.Headers.Set(k, v)
		}
		for k, v := range hf.cfg.Headers {
			r.Headers.Set(k, v)
		}
	})

	var page *Page
	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        url,
			FinalURL:   r.Request.URL.String(),
			HTML:       string(r.Body),
			Method:     MethodHTTP,
			StatusCode: r.StatusCode,
			FetchedAt:  time.Now(),
		}
	})

	status := 0
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	err := c.Visit(url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, backoff.Permanent(ctxErr)
		}
		return nil, classifyStatus(url, status, err)
	}
	if page == nil || strings.TrimSpace(page.HTML) == "" {
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrNoContent, url))
	}
	return page, nil
}

// classifyStatus maps a failed visit to the error taxonomy. Only transport
// failures and server errors stay retryable.
func classifyStatus(url string, status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("%w: %s returned %d", ErrSessionInvalid, url, status))
	case status >= 400 && status < 500:
		return backoff.Permanent(fmt.Errorf("%w: %s returned %d", ErrTransport, url, status))
	case status >= 500:
		return fmt.Errorf("%w: %s returned %d", ErrTransport, url, status)
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrTransport, url, err)
}
