package fetcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// BrowserConfig configures the browser based fetchers
type BrowserConfig struct {
	Headless    bool
	UserDataDir string
	Bin         string
	UserAgent   string
	// Timeout bounds the whole navigation of one page.
	Timeout time.Duration
	// TableWait is how long to wait for a table to appear after load.
	TableWait time.Duration
	// Settle is a fixed pause for late scripts before reading the markup.
	Settle time.Duration
}

func (c BrowserConfig) withDefaults() BrowserConfig {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.TableWait <= 0 {
		c.TableWait = 20 * time.Second
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Operator is the person driving a manual-login session. The fetcher prints
// instructions to Out and waits for a line on In before reading the page.
type Operator struct {
	In  io.Reader
	Out io.Writer
}

// RodFetcher implements the Fetcher interface using rod
type RodFetcher struct {
	browser  *rod.Browser
	cfg      BrowserConfig
	operator *Operator
	logger   *zap.Logger
}

// NewRodFetcher launches a browser. With a non-nil operator the browser is
// visible and every fetch pauses until the operator confirms the page.
func NewRodFetcher(cfg BrowserConfig, operator *Operator, logger *zap.Logger) (*RodFetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if operator != nil {
		cfg.Headless = false
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-breakpad").
		Set("disable-default-apps").
		Set("disable-popup-blocking").
		Set("disable-sync").
		Set("disable-translate").
		Set("mute-audio").
		Set("user-agent", cfg.UserAgent)

	if cfg.UserDataDir != "" {
		if err := os.MkdirAll(cfg.UserDataDir, 0755); err != nil {
			logger.Warn("failed to create browser data directory", zap.String("dir", cfg.UserDataDir), zap.Error(err))
		} else {
			l = l.UserDataDir(cfg.UserDataDir)
		}
	}

	if bin := findBrowserBin(cfg.Bin); bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodFetcher{
		browser:  browser,
		cfg:      cfg,
		operator: operator,
		logger:   logger,
	}, nil
}

// findBrowserBin returns the configured binary or the first system Chrome or
// Chromium found. An empty result lets rod download its own build.
func findBrowserBin(configured string) string {
	candidates := []string{
		configured,
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Close closes the browser
func (rf *RodFetcher) Close() error {
	if rf.browser != nil {
		return rf.browser.Close()
	}
	return nil
}

// Fetch implements the Fetcher interface
func (rf *RodFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	// a manual session waits on a person, so only automated fetches are bounded
	if rf.operator == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rf.cfg.Timeout+rf.cfg.Settle)
		defer cancel()
	}

	page, err := rf.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open page: %v", ErrTransport, err)
	}
	defer page.Close()

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("%w: failed to navigate to %s: %v", ErrTransport, url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: page did not load: %v", ErrTransport, err)
	}

	if rf.operator != nil {
		fmt.Fprintf(rf.operator.Out, "Browser opened at %s\nLog in and open the opportunity list, then press Enter to continue...\n", url)
		if err := waitForOperator(ctx, rf.operator.In); err != nil {
			return nil, err
		}
	}

	if _, err := page.Timeout(rf.cfg.TableWait).Element("table"); err != nil {
		rf.logger.Warn("no table appeared before timeout", zap.String("url", url), zap.Duration("wait", rf.cfg.TableWait))
	}

	if err := sleepCtx(ctx, rf.cfg.Settle); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &Page{
		URL:       url,
		FinalURL:  finalURL,
		HTML:      html,
		Method:    MethodRod,
		FetchedAt: time.Now(),
	}, nil
}

// waitForOperator blocks until a line is read from in or ctx ends.
func waitForOperator(ctx context.Context, in io.Reader) error {
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(in).ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
