// Package main wires together the listings pipeline binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ec-listings-pipeline/internal/api"
	"github.com/JakeFAU/ec-listings-pipeline/internal/clock/system"
	"github.com/JakeFAU/ec-listings-pipeline/internal/config"
	"github.com/JakeFAU/ec-listings-pipeline/internal/export"
	"github.com/JakeFAU/ec-listings-pipeline/internal/extract"
	"github.com/JakeFAU/ec-listings-pipeline/internal/fetcher"
	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
	"github.com/JakeFAU/ec-listings-pipeline/internal/logging"
	"github.com/JakeFAU/ec-listings-pipeline/internal/metrics"
	"github.com/JakeFAU/ec-listings-pipeline/internal/pipeline"
	"github.com/JakeFAU/ec-listings-pipeline/internal/ratelimit"
	memorystore "github.com/JakeFAU/ec-listings-pipeline/internal/store/memory"
	postgresstore "github.com/JakeFAU/ec-listings-pipeline/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	exportFormat := flag.String("export", "", "Export stored records after the run (csv or xlsx)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *exportFormat, flag.Args(), logger); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, exportFormat string, argURLs []string, logger *zap.Logger) error {
	metrics.Init()
	clock := system.New()

	urls := cfg.Run.TargetURLs
	if len(argURLs) > 0 {
		urls = argURLs
	}
	if len(urls) == 0 && exportFormat == "" {
		return errors.New("no target URLs configured")
	}

	store, err := buildStore(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var apiServer *api.Server
	if cfg.Server.Enabled {
		apiServer = api.NewServer(store, logger)
		if err := apiServer.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
			return fmt.Errorf("start api server: %w", err)
		}
	}

	var summary listing.RunSummary
	if len(urls) > 0 {
		limiter := ratelimit.New(cfg.HTTP.MinInterval())
		fetch := fetcher.New(fetcher.Policy{
			UserAgent:   cfg.HTTP.UserAgent,
			Timeout:     cfg.HTTP.Timeout(),
			MaxRetries:  cfg.HTTP.MaxRetries,
			BackoffBase: cfg.HTTP.BackoffInitial(),
			BackoffMax:  cfg.HTTP.BackoffMax(),
		}, limiter, logger)
		extractor := extract.New(cfg.ExtractorConfig(), logger)

		p := pipeline.New(fetch, extractor, store, clock, pipeline.Config{
			Concurrency: cfg.Run.Concurrency,
		}, logger)
		summary = p.Run(ctx, urls)
		if apiServer != nil {
			apiServer.SetSummary(summary)
		}
	}

	if exportFormat != "" {
		exporter := export.New(store, cfg.Export.Dir, clock)
		var (
			path string
			err  error
		)
		switch strings.ToLower(exportFormat) {
		case "csv":
			path, err = exporter.ExportCSV(ctx, listing.ListFilter{})
		case "xlsx", "excel":
			path, err = exporter.ExportExcel(ctx, listing.ListFilter{})
		case "report":
			path, err = exporter.ExportReport(ctx)
		default:
			return fmt.Errorf("unsupported export format %q", exportFormat)
		}
		if err != nil {
			return fmt.Errorf("export records: %w", err)
		}
		logger.Info("export written", zap.String("path", path))
	}

	if len(urls) > 0 && summary.Fetched == 0 && summary.FetchFailed == len(urls) {
		logger.Warn("no page could be fetched", zap.Int("urls", len(urls)))
	}

	if apiServer != nil {
		logger.Info("serving until interrupted")
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api server shutdown", zap.Error(err))
		}
	}
	return nil
}

// buildStore selects Postgres when a DSN is configured and falls back
// to the in-memory store otherwise. A store that cannot be reached at
// all is the one fatal condition of a run.
func buildStore(ctx context.Context, cfg config.Config, clock listing.Clock, logger *zap.Logger) (listing.Store, error) {
	if cfg.DB.DSN == "" {
		logger.Info("no database configured, using in-memory store")
		return memorystore.New(clock), nil
	}
	store, err := postgresstore.New(ctx, postgresstore.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	}, clock)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

