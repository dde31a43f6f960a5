package fetcher

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTransport covers timeouts, connection failures and non-success
	// HTTP statuses other than the session ones.
	ErrTransport = errors.New("transport failure")

	// ErrSessionInvalid means the portal rejected or expired the session.
	// It is never retried.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrNoContent means the response carried no markup.
	ErrNoContent = errors.New("empty page")
)

// Method names reported in Page.Method.
const (
	MethodHTTP     = "http"
	MethodRod      = "rod"
	MethodChromedp = "chromedp"
)

// Page is a fetched document
type Page struct {
	URL        string
	FinalURL   string
	HTML       string
	Method     string
	StatusCode int
	FetchedAt  time.Time
}

// Fetcher defines the contract for fetching implementations
type Fetcher interface {
	// Fetch retrieves the rendered markup of url.
	Fetch(ctx context.Context, url string) (*Page, error)
}
