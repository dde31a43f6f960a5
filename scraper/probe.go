package scraper

import (
	"context"

	"tender-scraper/parser"

	"go.uber.org/zap"
)

// ProbeResult describes one candidate URL without extracting from it
type ProbeResult struct {
	URL    string
	Method string
	Info   parser.PageInfo
	Err    error
}

// Usable reports whether the page was fetched and the session accepted.
func (p ProbeResult) Usable() bool {
	return p.Err == nil && !p.Info.SessionInvalid
}

// Probe fetches every URL and inspects the page, so an operator can see
// which listing page actually serves data.
func (r *Runner) Probe(ctx context.Context, urls []string) ([]ProbeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []ProbeResult
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := ProbeResult{URL: u}
		page, err := r.fetcher.Fetch(ctx, u)
		if err != nil {
			res.Err = err
			r.logger.Warn("probe fetch failed", zap.String("url", u), zap.Error(err))
			results = append(results, res)
			continue
		}
		res.Method = page.Method

		info, err := r.extractor.InspectHTML(page.HTML, r.opts.SessionPhrases)
		if err != nil {
			res.Err = err
		}
		res.Info = info
		r.logger.Info("probed",
			zap.String("url", u),
			zap.Int("tables", info.Tables),
			zap.Int("containers", info.Containers),
			zap.Bool("domain_content", info.HasDomainContent),
			zap.Bool("session_invalid", info.SessionInvalid))
		results = append(results, res)
	}
	return results, nil
}

// Best picks the usable page with the most tables and containers. Pages
// mentioning tenders are preferred over those that do not; ties keep the
// earlier URL.
func Best(results []ProbeResult) (ProbeResult, bool) {
	best := -1
	for i, r := range results {
		if !r.Usable() {
			continue
		}
		if best < 0 || better(r, results[best]) {
			best = i
		}
	}
	if best < 0 {
		return ProbeResult{}, false
	}
	return results[best], true
}

func better(a, b ProbeResult) bool {
	if a.Info.HasDomainContent != b.Info.HasDomainContent {
		return a.Info.HasDomainContent
	}
	return a.Info.Score() > b.Info.Score()
}
