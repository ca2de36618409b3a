package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Reggles44/sec-map/pkg/core/build"
	"github.com/Reggles44/sec-map/pkg/core/edgar"
	"github.com/Reggles44/sec-map/pkg/core/index"
	"github.com/Reggles44/sec-map/pkg/core/progress"
	"github.com/Reggles44/sec-map/pkg/core/store"
	"github.com/Reggles44/sec-map/pkg/core/ticker"
)

var (
	buildForce     bool
	buildNoTickers bool
	buildQuiet     bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Fetch quarterly manifests and resolve tickers",
	Long: `Fetch the crawler manifest of every quarter from the start date through the
current quarter that is not yet marked complete, merge it into the index, then
resolve tickers for companies that have none.

State is checkpointed after each phase, so an interrupted build resumes where
it stopped.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "refetch quarters already marked complete")
	buildCmd.Flags().BoolVar(&buildNoTickers, "no-tickers", false, "skip the ticker phase")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "no progress bars")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start, err := cfg.Start()
	if err != nil {
		return err
	}

	idx, err := index.Load(cfg.IndexPath())
	if err != nil {
		return err
	}
	ledger, err := progress.Load(cfg.ProgressPath())
	if err != nil {
		return err
	}
	tickers, err := ticker.LoadCache(cfg.TickerPath())
	if err != nil {
		return err
	}
	logger.Info("state loaded", "companies", idx.Len(), "quarters_complete", len(ledger.Keys()), "tickers_cached", tickers.Len())

	fetcher := edgar.NewFetcher(edgar.FetcherConfig{
		BaseURL:   cfg.ArchiveBaseURL,
		UserAgent: cfg.UserAgent,
		RateLimit: cfg.RateLimit,
		Timeout:   cfg.Timeout(),
		Logger:    logger,
	})

	b := &build.Builder{
		Source:   fetcher,
		Index:    idx,
		Ledger:   ledger,
		Tickers:  tickers,
		Resolver: ticker.NewResolver(fetcher, tickers, cfg.PreferredForms, logger),
		Paths: build.Paths{
			Index:    cfg.IndexPath(),
			Progress: cfg.ProgressPath(),
			Tickers:  cfg.TickerPath(),
		},
		Start:  start,
		Logger: logger,
	}

	if cfg.DatabaseURL != "" {
		mirror, err := openMirror(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("mirror disabled", "error", err)
		} else {
			defer mirror.Close()
			b.Exporter = mirror
		}
	}

	if !buildQuiet {
		b.Progress = newProgressBars()
	}

	report, runErr := b.Run(ctx, build.Options{Force: buildForce, SkipTickers: buildNoTickers})
	if report != nil {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	}
	logger.Info("requests sent", "count", fetcher.Requests())
	return runErr
}

func openMirror(ctx context.Context, dbURL string) (*store.Mirror, error) {
	pool, err := store.OpenPool(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	mirror := store.NewMirror(pool)
	if err := mirror.EnsureSchema(ctx); err != nil {
		mirror.Close()
		return nil, err
	}
	return mirror, nil
}

// newProgressBars returns a build progress hook that draws one bar per
// phase. The hook is called from the phase's worker goroutines.
func newProgressBars() func(build.Phase, int, int) {
	var mu sync.Mutex
	bars := make(map[build.Phase]*progressbar.ProgressBar)

	return func(phase build.Phase, done, total int) {
		mu.Lock()
		defer mu.Unlock()

		bar, ok := bars[phase]
		if !ok {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+string(phase)+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
			bars[phase] = bar
		}
		bar.Set(done)
	}
}
