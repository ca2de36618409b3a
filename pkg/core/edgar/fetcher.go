package edgar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the EDGAR archive host.
	DefaultBaseURL = "https://www.sec.gov"

	// DefaultUserAgent identifies the client to EDGAR. The SEC blocks
	// requests that do not carry contact information, so deployments
	// should override this with their own.
	DefaultUserAgent = "sec-map admin@example.com"

	// DefaultRateLimit stays under EDGAR's published ceiling of 10 req/s.
	DefaultRateLimit = 9

	DefaultTimeout = 5 * time.Second

	manifestPath = "%s/Archives/edgar/full-index/%d/QTR%d/crawler.idx"
	detailPath   = "%s/Archives/edgar/data/%s/%s-index.htm"
)

// Getter fetches a URL, reporting absence instead of an error. Every
// EDGAR consumer in this module depends on Getter rather than on Fetcher
// so tests can substitute canned responses.
type Getter interface {
	Fetch(ctx context.Context, url string) ([]byte, bool)
}

// FetcherConfig configures a Fetcher. Zero values fall back to the defaults.
type FetcherConfig struct {
	BaseURL   string
	UserAgent string
	RateLimit int // permits per second, shared by every caller
	Timeout   time.Duration
	Client    *http.Client
	Logger    *slog.Logger
}

// Fetcher performs rate limited GETs against the EDGAR archive.
// One Fetcher (and therefore one limiter) must be shared by every
// concurrent caller for the limit to mean anything.
type Fetcher struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
	requests  atomic.Int64
}

// NewFetcher creates a Fetcher from cfg.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Fetcher{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		client:    cfg.Client,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
		logger:    cfg.Logger.With("component", "fetcher"),
	}
}

// ManifestURL returns the crawler.idx URL for a quarter.
func (f *Fetcher) ManifestURL(year, quarter int) string {
	return fmt.Sprintf(manifestPath, f.baseURL, year, quarter)
}

// DetailURL returns the filing detail (-index.htm) page URL.
func (f *Fetcher) DetailURL(cik, accessionID string) string {
	return fmt.Sprintf(detailPath, f.baseURL, cik, accessionID)
}

// BaseURL returns the archive host the fetcher targets.
func (f *Fetcher) BaseURL() string {
	return f.baseURL
}

// Requests reports how many requests have been sent.
func (f *Fetcher) Requests() int64 {
	return f.requests.Load()
}

// Fetch waits for a permit and GETs url. Timeouts, transport errors and
// non-2xx statuses are logged and reported as (nil, false). There are no
// retries here; callers decide what a miss means.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, bool) {
	if err := f.limiter.Wait(ctx); err != nil {
		f.logger.Warn("rate limiter wait aborted", "url", url, "error", err)
		return nil, false
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Warn("bad request", "url", url, "error", err)
		return nil, false
	}
	req.Header.Set("User-Agent", f.userAgent)

	f.requests.Add(1)
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			f.logger.Warn("request timed out", "url", url, "timeout", f.timeout)
		} else {
			f.logger.Warn("request failed", "url", url, "error", err)
		}
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("unexpected status", "url", url, "status", resp.StatusCode)
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Warn("failed to read body", "url", url, "error", err)
		return nil, false
	}
	return body, true
}
