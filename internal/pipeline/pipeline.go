// Package pipeline drives the fetch-extract-upsert chain over a URL
// list with a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
)

// Config controls orchestration behavior.
type Config struct {
	// Concurrency bounds the number of in-flight URL chains. The shared
	// rate-limit clock inside the fetcher still throttles total request
	// rate regardless of this value. Defaults to 1 (strictly sequential).
	Concurrency int
}

// Pipeline executes runs against a fixed set of collaborators.
type Pipeline struct {
	fetcher   listing.Fetcher
	extractor listing.Extractor
	store     listing.Store
	clock     listing.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Pipeline.
func New(
	fetcher listing.Fetcher,
	extractor listing.Extractor,
	store listing.Store,
	clock listing.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes every URL and returns the aggregated summary. A failure
// at any stage is recorded for that URL and never aborts the run.
// Cancelling the context stops dispatching new URLs; chains already in
// flight run to completion so no write is left half-applied.
func (p *Pipeline) Run(ctx context.Context, urls []string) listing.RunSummary {
	summary := listing.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: p.clock.Now(),
	}
	p.logger.Info("run started",
		zap.String("run_id", summary.RunID),
		zap.Int("urls", len(urls)),
		zap.Int("concurrency", p.cfg.Concurrency),
	)

	jobs := make(chan string)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	// In-flight chains must complete even after cancellation, so workers
	// get a context detached from the run's cancel signal.
	chainCtx := context.WithoutCancel(ctx)

	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				outcome := p.processURL(chainCtx, url)
				mu.Lock()
				summary.Apply(outcome)
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, url := range urls {
		select {
		case <-ctx.Done():
			p.logger.Warn("run cancelled, draining in-flight chains",
				zap.String("run_id", summary.RunID))
			break dispatch
		case jobs <- url:
		}
	}
	close(jobs)
	wg.Wait()

	summary.FinishedAt = p.clock.Now()
	p.logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("fetched", summary.Fetched),
		zap.Int("fetch_failed", summary.FetchFailed),
		zap.Int("extracted", summary.Extracted),
		zap.Int("extraction_failed", summary.ExtractionFailed),
		zap.Int("inserted", summary.Inserted),
		zap.Int("merged", summary.Merged),
		zap.Int("identity_rejected", summary.IdentityRejected),
		zap.Int("store_failed", summary.StoreFailed),
	)
	return summary
}

// processURL runs one URL through fetch, extract, and upsert.
func (p *Pipeline) processURL(ctx context.Context, url string) listing.URLOutcome {
	result, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		p.logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		outcome := listing.URLOutcome{URL: url, Status: listing.URLFetchFailed, Err: err.Error()}
		if fe, ok := listing.AsFetchError(err); ok {
			outcome.Attempts = fe.Attempts
		}
		return outcome
	}

	cand, err := p.extractor.Extract(result.Body, result.ContentType, url)
	if err != nil {
		status := listing.URLExtractionFailed
		if errors.Is(err, listing.ErrIdentity) {
			status = listing.URLIdentityRejected
		}
		p.logger.Warn("extraction failed", zap.String("url", url), zap.Error(err))
		return listing.URLOutcome{
			URL:      url,
			Status:   status,
			Attempts: result.Attempts,
			Err:      err.Error(),
		}
	}

	upsert, err := p.store.Upsert(ctx, cand)
	if err != nil {
		p.logger.Error("upsert failed",
			zap.String("url", url),
			zap.String("identity_key", cand.IdentityKey),
			zap.Error(err),
		)
		return listing.URLOutcome{
			URL:         url,
			Status:      listing.URLStoreFailed,
			IdentityKey: cand.IdentityKey,
			Attempts:    result.Attempts,
			Err:         err.Error(),
		}
	}

	p.logger.Info("url processed",
		zap.String("url", url),
		zap.String("identity_key", cand.IdentityKey),
		zap.String("outcome", string(upsert)),
		zap.Int("attempts", result.Attempts),
	)
	return listing.URLOutcome{
		URL:         url,
		Status:      listing.URLSucceeded,
		Outcome:     upsert,
		IdentityKey: cand.IdentityKey,
		Attempts:    result.Attempts,
	}
}
