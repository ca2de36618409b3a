package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apiAssemble "github.com/Reggles44/sec-map/pkg/api/assemble"
	apiConfig "github.com/Reggles44/sec-map/pkg/api/config"
	"github.com/Reggles44/sec-map/pkg/api/lookup"
	"github.com/Reggles44/sec-map/pkg/core/assemble"
	"github.com/Reggles44/sec-map/pkg/core/edgar"
	"github.com/Reggles44/sec-map/pkg/core/index"
	"github.com/Reggles44/sec-map/pkg/core/progress"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lookups over the index",
	Long: `Serve the index over HTTP:

  GET /                 the whole index
  GET /lookup/company   one company, optionally reduced to a form and date range
  GET /assemble         the XBRL documents of every matching filing
  GET /api/config       effective settings and index state`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	idx, err := index.Load(cfg.IndexPath())
	if err != nil {
		return err
	}
	ledger, err := progress.Load(cfg.ProgressPath())
	if err != nil {
		return err
	}
	if idx.Salvaged() {
		logger.Warn("index was salvaged from a damaged file, run secmap build to restore it", "path", cfg.IndexPath())
	}
	if idx.Len() == 0 {
		logger.Warn("index is empty, run secmap build first", "path", cfg.IndexPath())
	}

	fetcher := edgar.NewFetcher(edgar.FetcherConfig{
		BaseURL:   cfg.ArchiveBaseURL,
		UserAgent: cfg.UserAgent,
		RateLimit: cfg.RateLimit,
		Timeout:   cfg.Timeout(),
		Logger:    logger,
	})
	assembler := assemble.NewCachedAssembler(assemble.NewDocumentAssembler(fetcher, logger), cfg.AssembleCacheSize)

	mux := http.NewServeMux()
	lookup.NewHandler(idx, logger).Register(mux)
	apiAssemble.NewHandler(idx, assembler, logger).Register(mux)
	apiConfig.NewHandler(cfg, idx, ledger).Register(mux)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting", "addr", cfg.ListenAddr, "companies", idx.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
