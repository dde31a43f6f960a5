package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// AcceptFunc decides whether a fetched page is good enough to stop the chain.
type AcceptFunc func(p *Page) bool

// HasTable accepts pages whose markup contains a table element.
func HasTable(p *Page) bool {
	return strings.Contains(strings.ToLower(p.HTML), "<table")
}

// Chain tries fetchers in order. A failing fetcher or a rejected page moves
// on to the next one.
type Chain struct {
	fetchers []Fetcher
	accept   AcceptFunc
	logger   *zap.Logger
}

// NewChain creates a Chain. A nil accept func accepts every page.
func NewChain(accept AcceptFunc, logger *zap.Logger, fetchers ...Fetcher) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{fetchers: fetchers, accept: accept, logger: logger}
}

// Fetch implements the Fetcher interface. When no page is accepted the last
// successfully fetched page is returned; when every fetcher fails the last
// error is returned.
func (c *Chain) Fetch(ctx context.Context, url string) (*Page, error) {
	if len(c.fetchers) == 0 {
		return nil, fmt.Errorf("no fetchers configured")
	}

	var lastPage *Page
	var lastErr error
	for _, f := range c.fetchers {
		page, err := f.Fetch(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn("fetcher failed, trying next", zap.String("url", url), zap.Error(err))
			lastErr = err
			continue
		}
		if c.accept == nil || c.accept(page) {
			return page, nil
		}
		c.logger.Info("page rejected, trying next fetcher", zap.String("url", url), zap.String("method", page.Method))
		lastPage = page
	}

	if lastPage != nil {
		return lastPage, nil
	}
	return nil, lastErr
}

// Close closes every fetcher that holds resources
func (c *Chain) Close() error {
	var errs []error
	for _, f := range c.fetchers {
		if closer, ok := f.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
