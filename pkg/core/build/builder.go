// Package build drives an incremental index build: quarterly manifests
// first, then ticker resolution, checkpointing to disk after each phase.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Reggles44/sec-map/pkg/core/edgar"
	"github.com/Reggles44/sec-map/pkg/core/index"
	"github.com/Reggles44/sec-map/pkg/core/progress"
	"github.com/Reggles44/sec-map/pkg/core/store"
	"github.com/Reggles44/sec-map/pkg/core/ticker"
)

// Source is the EDGAR access the builder needs. *edgar.Fetcher implements it.
type Source interface {
	edgar.Getter
	ManifestURL(year, quarter int) string
	DetailURL(cik, accessionID string) string
}

// Exporter receives the index after each checkpoint. *store.Mirror implements it.
type Exporter interface {
	Export(ctx context.Context, rows []store.CompanyRow) error
}

// DefaultStart is the first quarter of EDGAR's full index.
var DefaultStart = time.Date(1993, time.January, 1, 0, 0, 0, 0, time.UTC)

// Phase names a build phase for progress reporting.
type Phase string

const (
	PhaseManifests Phase = "manifests"
	PhaseTickers   Phase = "tickers"
)

// Paths locates the persisted state files.
type Paths struct {
	Index    string
	Progress string
	Tickers  string
}

// Options are the two caller control points of a build.
type Options struct {
	// Force re-fetches every quarter, ignoring the progress ledger.
	Force bool
	// SkipTickers stops after the manifest phase.
	SkipTickers bool
}

// Report summarises one Run.
type Report struct {
	RunID           string        `json:"run_id"`
	Quarters        int           `json:"quarters"`
	QuartersSkipped int           `json:"quarters_skipped"`
	QuartersFetched int           `json:"quarters_fetched"`
	QuartersFailed  int           `json:"quarters_failed"`
	Records         int           `json:"records"`
	SkippedLines    int           `json:"skipped_lines"`
	Companies       int           `json:"companies"`
	TickersResolved int           `json:"tickers_resolved"`
	TickersNotFound int           `json:"tickers_not_found"`
	TickersFailed   int           `json:"tickers_failed"`
	TickersSkipped  int           `json:"tickers_skipped"`
	Duration        time.Duration `json:"duration"`
}

// Builder owns the index, ledger and ticker cache for the duration of a
// build and hands them to the concurrent tasks of each phase.
type Builder struct {
	Source   Source
	Index    *index.Store
	Ledger   *progress.Ledger
	Tickers  *ticker.Cache
	Resolver *ticker.Resolver
	Paths    Paths
	Start    time.Time

	// Optional.
	Exporter Exporter
	Progress func(phase Phase, done, total int)
	Now      func() time.Time
	Logger   *slog.Logger

	mu     sync.Mutex
	report *Report
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default().With("component", "build")
	}
	return b.Logger.With("component", "build")
}

func (b *Builder) start() time.Time {
	if b.Start.IsZero() {
		return DefaultStart
	}
	return b.Start
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) tally(f func(r *Report)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(b.report)
}

func (b *Builder) progress(phase Phase, done, total int) {
	if b.Progress != nil {
		b.Progress(phase, done, total)
	}
}

// Run performs one build. The manifest phase always finishes and is
// checkpointed before the ticker phase begins. Persistence errors abort the
// run. If ctx is cancelled mid-phase, whatever was ingested is still saved
// before Run returns the context error.
func (b *Builder) Run(ctx context.Context, opts Options) (*Report, error) {
	began := b.now()
	b.report = &Report{RunID: uuid.NewString()}
	log := b.logger().With("run_id", b.report.RunID)

	log.Info("build starting", "start", b.start().Format(index.DateLayout), "force", opts.Force, "skip_tickers", opts.SkipTickers, "companies", b.Index.Len())

	// The ledger only vouches for quarters whose records are in the index.
	if b.Index.Salvaged() {
		log.Warn("index was salvaged from a damaged file, refetching every quarter", "path", b.Paths.Index, "quarters_forgotten", len(b.Ledger.Keys()))
		b.Ledger.Reset()
	}

	phaseErr := b.runManifests(ctx, opts, log)
	if err := b.checkpoint(ctx, log, PhaseManifests, b.saveIndex, b.saveLedger); err != nil {
		return b.report, err
	}
	if phaseErr != nil {
		return b.report, phaseErr
	}

	if !opts.SkipTickers {
		phaseErr = b.runTickers(ctx, log)
		if err := b.checkpoint(ctx, log, PhaseTickers, b.saveTickers, b.saveIndex); err != nil {
			return b.report, err
		}
		if phaseErr != nil {
			return b.report, phaseErr
		}
	}

	b.report.Companies = b.Index.Len()
	b.report.Duration = b.now().Sub(began)
	log.Info("build finished",
		"quarters_fetched", b.report.QuartersFetched,
		"quarters_failed", b.report.QuartersFailed,
		"records", b.report.Records,
		"companies", b.report.Companies,
		"tickers_resolved", b.report.TickersResolved,
		"duration", b.report.Duration)
	return b.report, nil
}

func (b *Builder) runManifests(ctx context.Context, opts Options, log *slog.Logger) error {
	now := b.now()
	open := QuarterOf(now)
	all := Quarters(b.start(), now)
	b.report.Quarters = len(all)

	var pending []Quarter
	for _, q := range all {
		if !opts.Force && b.Ledger.IsComplete(q.Key()) {
			b.report.QuartersSkipped++
			continue
		}
		pending = append(pending, q)
	}
	log.Info("manifest phase", "quarters", len(all), "pending", len(pending))

	// Every quarter is its own task; the fetcher's limiter is the only
	// admission control.
	var g errgroup.Group
	var done int
	for _, q := range pending {
		g.Go(func() error {
			b.ingestQuarter(ctx, q, q == open, log)
			b.mu.Lock()
			done++
			n := done
			b.mu.Unlock()
			b.progress(PhaseManifests, n, len(pending))
			return ctx.Err()
		})
	}
	return g.Wait()
}

func (b *Builder) ingestQuarter(ctx context.Context, q Quarter, open bool, log *slog.Logger) {
	log = log.With("quarter", q.Key())

	body, ok := b.Source.Fetch(ctx, b.Source.ManifestURL(q.Year, q.Quarter))
	if !ok {
		b.tally(func(r *Report) { r.QuartersFailed++ })
		log.Warn("manifest unavailable, quarter left for next build")
		return
	}

	manifest, ok := edgar.ParseManifest(body, log)
	if !ok {
		b.tally(func(r *Report) { r.QuartersFailed++ })
		log.Warn("document is not a crawler manifest, quarter left for next build", "bytes", len(body))
		return
	}

	b.Index.MergeAll(manifest.Records)
	b.tally(func(r *Report) {
		r.QuartersFetched++
		r.Records += len(manifest.Records)
		r.SkippedLines += manifest.Skipped
	})

	// The current quarter's manifest keeps growing until the quarter ends.
	if !open {
		b.Ledger.MarkComplete(q.Key())
	}
	log.Info("quarter ingested", "records", len(manifest.Records), "skipped", manifest.Skipped, "open", open)
}

func (b *Builder) runTickers(ctx context.Context, log *slog.Logger) error {
	var pending []string
	for _, cik := range b.Index.WithoutTicker() {
		if _, state := b.Tickers.Get(cik); state == ticker.Missing {
			b.report.TickersSkipped++
			continue
		}
		pending = append(pending, cik)
	}
	log.Info("ticker phase", "pending", len(pending), "known_misses", b.report.TickersSkipped)

	var g errgroup.Group
	var done int
	for _, cik := range pending {
		g.Go(func() error {
			b.resolveTicker(ctx, cik)
			b.mu.Lock()
			done++
			n := done
			b.mu.Unlock()
			b.progress(PhaseTickers, n, len(pending))
			return ctx.Err()
		})
	}
	return g.Wait()
}

func (b *Builder) resolveTicker(ctx context.Context, cik string) {
	company, ok := b.Index.Get(cik)
	if !ok {
		return
	}

	res := b.Resolver.Resolve(ctx, cik, company)
	switch res.Outcome {
	case ticker.Resolved:
		b.Index.SetTicker(cik, res.Ticker)
		b.tally(func(r *Report) { r.TickersResolved++ })
	case ticker.NotFound:
		b.tally(func(r *Report) { r.TickersNotFound++ })
	case ticker.FetchFailed:
		b.tally(func(r *Report) { r.TickersFailed++ })
	default:
		b.tally(func(r *Report) { r.TickersSkipped++ })
	}
}

type saveFunc func() error

func (b *Builder) saveIndex() error   { return b.Index.Save(b.Paths.Index) }
func (b *Builder) saveLedger() error  { return b.Ledger.Save(b.Paths.Progress) }
func (b *Builder) saveTickers() error { return b.Tickers.Save(b.Paths.Tickers) }

// checkpoint persists state, then refreshes the mirror. The mirror is
// best effort; the JSON files are the source of truth.
func (b *Builder) checkpoint(ctx context.Context, log *slog.Logger, phase Phase, saves ...saveFunc) error {
	for _, save := range saves {
		if err := save(); err != nil {
			return fmt.Errorf("%s checkpoint failed: %w", phase, err)
		}
	}
	log.Info("checkpoint saved", "phase", phase)

	if b.Exporter != nil {
		if err := b.Exporter.Export(context.WithoutCancel(ctx), b.Index.Rows()); err != nil {
			log.Warn("mirror export failed", "phase", phase, "error", err)
		}
	}
	return nil
}
