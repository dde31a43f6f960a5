package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastHTTP() HTTPConfig {
	return HTTPConfig{Timeout: 5 * time.Second, Attempts: 3, InitialBackoff: time.Millisecond}
}

func TestHTTPFetcherSuccess(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		fmt.Fprint(w, "<html><body><table><tr><td>x</td></tr></table></body></html>")
	}))
	defer srv.Close()

	page, err := NewHTTPFetcher(fastHTTP(), nil).Fetch(context.Background(), srv.URL+"/list")
	require.NoError(t, err)
	assert.Equal(t, MethodHTTP, page.Method)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.HTML, "<table>")
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, "en-US,en;q=0.5", gotLang)
	assert.True(t, HasTable(page))
}

func TestHTTPFetcherRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer srv.Close()

	page, err := NewHTTPFetcher(fastHTTP(), nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "ok")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPFetcherErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		wantCalls int32
	}{
		{"unauthorized is not retried", http.StatusUnauthorized, ErrSessionInvalid, 1},
		{"forbidden is not retried", http.StatusForbidden, ErrSessionInvalid, 1},
		{"not found is not retried", http.StatusNotFound, ErrTransport, 1},
		{"server error exhausts attempts", http.StatusInternalServerError, ErrTransport, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTPFetcher(fastHTTP(), nil).Fetch(context.Background(), srv.URL)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestHTTPFetcherEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := NewHTTPFetcher(fastHTTP(), nil).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNoContent)
}

type stubFetcher struct {
	page  *Page
	err   error
	calls int
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.page, nil
}

func TestChain(t *testing.T) {
	plain := &Page{Method: MethodHTTP, HTML: "<div>loading...</div>"}
	rendered := &Page{Method: MethodRod, HTML: "<TABLE><tr><td>x</td></tr></TABLE>"}
	failure := fmt.Errorf("%w: boom", ErrTransport)

	tests := []struct {
		name       string
		fetchers   []*stubFetcher
		wantMethod string
		wantErr    error
		wantCalls  []int
	}{
		{
			name:       "first accepted page wins",
			fetchers:   []*stubFetcher{{page: rendered}, {page: plain}},
			wantMethod: MethodRod,
			wantCalls:  []int{1, 0},
		},
		{
			name:       "rejected page falls through",
			fetchers:   []*stubFetcher{{page: plain}, {page: rendered}},
			wantMethod: MethodRod,
			wantCalls:  []int{1, 1},
		},
		{
			name:       "error falls through",
			fetchers:   []*stubFetcher{{err: failure}, {page: rendered}},
			wantMethod: MethodRod,
			wantCalls:  []int{1, 1},
		},
		{
			name:       "last fetched page when none accepted",
			fetchers:   []*stubFetcher{{page: plain}, {err: failure}},
			wantMethod: MethodHTTP,
			wantCalls:  []int{1, 1},
		},
		{
			name:      "all fail",
			fetchers:  []*stubFetcher{{err: failure}, {err: failure}},
			wantErr:   ErrTransport,
			wantCalls: []int{1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fs []Fetcher
			for _, f := range tt.fetchers {
				fs = append(fs, f)
			}
			page, err := NewChain(HasTable, nil, fs...).Fetch(context.Background(), "https://portal.example.com")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantMethod, page.Method)
			}
			for i, f := range tt.fetchers {
				assert.Equal(t, tt.wantCalls[i], f.calls, "fetcher %d", i)
			}
		})
	}
}

func TestChainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := &stubFetcher{page: &Page{HTML: "<table></table>"}}
	_, err := NewChain(nil, nil, &stubFetcher{err: ctx.Err()}, second).Fetch(ctx, "https://portal.example.com")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, second.calls)
}

func TestWaitForOperator(t *testing.T) {
	require.NoError(t, waitForOperator(context.Background(), strings.NewReader("\n")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked := blockReader{ch: make(chan struct{})}
	assert.ErrorIs(t, waitForOperator(ctx, blocked), context.Canceled)
}

type blockReader struct{ ch chan struct{} }

func (b blockReader) Read(p []byte) (int, error) {
	<-b.ch
	return 0, nil
}
