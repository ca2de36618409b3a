package ticker

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Reggles44/sec-map/pkg/core/edgar"
	"github.com/Reggles44/sec-map/pkg/core/index"
)

// DefaultPreferredForms bounds the candidate search to frequent periodic
// reports, which nearly always carry an XBRL schema.
var DefaultPreferredForms = []string{"10-Q", "10-K"}

// Outcome classifies a resolution attempt.
type Outcome int

const (
	// Skipped: nothing to do, the company has a ticker or is a known miss.
	Skipped Outcome = iota
	// Resolved: a ticker was found (or served from the cache).
	Resolved
	// NotFound: every candidate page was read and none named a ticker.
	NotFound
	// FetchFailed: no candidate page could be fetched at all. Nothing is
	// recorded so the next build tries again.
	FetchFailed
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case NotFound:
		return "not_found"
	case FetchFailed:
		return "fetch_failed"
	default:
		return "skipped"
	}
}

// Resolution is the result of Resolve.
type Resolution struct {
	Outcome Outcome
	Ticker  string
	// Attempts counts detail page fetches issued.
	Attempts int
}

// DetailSource fetches filing detail pages. *edgar.Fetcher implements it.
type DetailSource interface {
	edgar.Getter
	DetailURL(cik, accessionID string) string
}

// Resolver finds tickers by reading the schema filename on a company's
// filing detail pages.
type Resolver struct {
	source         DetailSource
	cache          *Cache
	preferredForms []string
	logger         *slog.Logger
}

// NewResolver creates a Resolver. preferredForms may be nil for the defaults.
func NewResolver(source DetailSource, cache *Cache, preferredForms []string, logger *slog.Logger) *Resolver {
	if len(preferredForms) == 0 {
		preferredForms = DefaultPreferredForms
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		source:         source,
		cache:          cache,
		preferredForms: preferredForms,
		logger:         logger.With("component", "ticker"),
	}
}

// Resolve determines the ticker for cik. It stops at the first detail page
// that names one. Resolved and NotFound results are written to the cache;
// FetchFailed is not.
func (r *Resolver) Resolve(ctx context.Context, cik string, company index.Company) Resolution {
	if company.HasTicker() {
		return Resolution{Outcome: Skipped, Ticker: *company.Ticker}
	}
	switch t, state := r.cache.Get(cik); state {
	case Known:
		return Resolution{Outcome: Resolved, Ticker: t}
	case Missing:
		return Resolution{Outcome: Skipped}
	}

	candidates := r.Candidates(company)
	res := Resolution{Outcome: FetchFailed}
	fetched := 0
	for _, accession := range candidates {
		res.Attempts++
		body, ok := r.source.Fetch(ctx, r.source.DetailURL(cik, accession))
		if !ok {
			continue
		}
		fetched++
		if t, ok := edgar.FindTicker(body); ok {
			r.cache.Put(cik, t)
			r.logger.Debug("ticker resolved", "cik", cik, "ticker", t, "accession", accession)
			return Resolution{Outcome: Resolved, Ticker: t, Attempts: res.Attempts}
		}
	}

	// An interrupted run proves nothing about the remaining candidates.
	if ctx.Err() != nil {
		return res
	}
	if fetched > 0 || len(candidates) == 0 {
		r.cache.PutNotFound(cik)
		r.logger.Debug("ticker not found", "cik", cik, "candidates", len(candidates))
		res.Outcome = NotFound
		return res
	}
	r.logger.Warn("ticker lookup failed, will retry next build", "cik", cik, "candidates", len(candidates))
	return res
}

// Candidates lists the accession ids to inspect, newest first. Filings of
// the preferred forms are used when the company has any; otherwise every
// filing is a candidate.
func (r *Resolver) Candidates(company index.Company) []string {
	type dated struct{ date, accession string }
	var picked []dated
	collect := func(form string) {
		for date, accession := range company.Forms[form] {
			picked = append(picked, dated{date, accession})
		}
	}

	for _, form := range r.preferredForms {
		collect(form)
	}
	if len(picked) == 0 {
		for form := range company.Forms {
			collect(form)
		}
	}

	sort.Slice(picked, func(i, j int) bool {
		if picked[i].date != picked[j].date {
			return picked[i].date > picked[j].date
		}
		return picked[i].accession > picked[j].accession
	})

	seen := make(map[string]bool, len(picked))
	out := make([]string, 0, len(picked))
	for _, p := range picked {
		if seen[p.accession] {
			continue
		}
		seen[p.accession] = true
		out = append(out, p.accession)
	}
	return out
}
