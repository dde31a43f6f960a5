package urlgen

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBase is the Ontario Tenders portal on Jaggaer.
const DefaultBase = "https://ontariotenders.app.jaggaer.com"

// DefaultPaths are the listing pages tried in order. Public list pages come
// first; the bare root is the last resort.
var DefaultPaths = []string{
	"/esop/toolkit/opportunity/current/list.si",
	"/esop/toolkit/opportunity/global/list.si?resetstored=true",
	"/esop/public/opportunities",
	"/esop/public",
	"/esop/guest/opportunities",
	"/esop/guest",
	"/public",
	"/",
}

// CandidateURL is one listing page to try
type CandidateURL struct {
	URL   string
	Label string // the path and query, e.g. "/esop/public"
}

// CandidateURLs joins base with each path. Absolute paths are kept as they
// are, and duplicates are dropped keeping the first occurrence.
func CandidateURLs(base string, paths []string) ([]CandidateURL, error) {
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", base)
	}

	if len(paths) == 0 {
		paths = []string{"/"}
	}

	seen := make(map[string]bool, len(paths))
	var out []CandidateURL
	for _, p := range paths {
		ref, err := url.Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", p, err)
		}
		full := baseURL.ResolveReference(ref)
		s := full.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, CandidateURL{URL: s, Label: Label(s)})
	}
	return out, nil
}

// URLs returns only the URL strings
func URLs(candidates []CandidateURL) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.URL
	}
	return out
}

// WithQuery returns urlStr with key set to value, keeping other parameters.
func WithQuery(urlStr, key, value string) (string, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Label returns the path and query of urlStr for use in logs and sheet names.
func Label(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	label := u.EscapedPath()
	if label == "" {
		label = "/"
	}
	if u.RawQuery != "" {
		label += "?" + u.RawQuery
	}
	return label
}
