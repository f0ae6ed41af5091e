// Package fetcher implements page retrieval using the Colly collector,
// under a shared rate-limit clock and a jittered retry policy.
package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
	"github.com/JakeFAU/ec-listings-pipeline/internal/metrics"
	"github.com/JakeFAU/ec-listings-pipeline/internal/ratelimit"
)

// Policy controls timeout and retry behavior for one run. MaxRetries
// counts attempts beyond the first, so a URL is requested at most
// MaxRetries+1 times.
type Policy struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Fetcher implements listing.Fetcher. All Fetch calls, across all
// workers, go through one shared interval limiter.
type Fetcher struct {
	policy        Policy
	backoff       backoffPolicy
	limiter       *ratelimit.Limiter
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher around a base Colly collector that each fetch
// attempt clones.
func New(policy Policy, limiter *ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if policy.UserAgent != "" {
		c.UserAgent = policy.UserAgent
	}
	timeout := policy.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	})

	return &Fetcher{
		policy:        policy,
		backoff:       newBackoffPolicy(policy.BackoffBase, policy.BackoffMax),
		limiter:       limiter,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch retrieves one URL, retrying retryable failures up to the policy
// limit. Client errors other than 429 are terminal on the first
// response; 429 honors a parseable Retry-After hint capped at the
// policy maximum.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (listing.FetchResult, error) {
	var (
		lastFailure *fetchFailure
		retryAfter  time.Duration
		attempts    int
	)

	for attempt := 0; attempt <= f.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.backoff.delay(attempt - 1)
			if retryAfter > 0 {
				delay = f.backoff.cap(retryAfter)
				retryAfter = 0
			}
			metrics.ObserveFetchRetry()
			f.logger.Debug("retrying fetch",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			if err := sleepCtx(ctx, delay); err != nil {
				return listing.FetchResult{}, err
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return listing.FetchResult{}, err
		}
		attempts++

		result, failure := f.attempt(rawURL)
		if err := ctx.Err(); err != nil {
			return listing.FetchResult{}, err
		}
		if failure == nil {
			result.Attempts = attempts
			metrics.ObservePageFetched(result.StatusCode)
			return result, nil
		}
		failure.Attempts = attempts
		lastFailure = failure

		if !retryable(failure) {
			metrics.ObserveFetchFailure(string(failure.Kind))
			return listing.FetchResult{}, &failure.FetchError
		}
		if failure.StatusCode == http.StatusTooManyRequests {
			retryAfter = failure.retryAfterHint
		}
		f.logger.Warn("fetch attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempts),
			zap.String("reason", string(failure.Kind)),
			zap.Error(failure.Cause),
		)
	}

	exhausted := &listing.FetchError{
		Kind:     listing.FetchRetriesExhausted,
		URL:      rawURL,
		Attempts: attempts,
	}
	if lastFailure != nil {
		exhausted.Cause = &lastFailure.FetchError
	}
	metrics.ObserveFetchFailure(string(listing.FetchRetriesExhausted))
	return listing.FetchResult{}, exhausted
}

// attempt issues a single GET through a cloned collector.
func (f *Fetcher) attempt(rawURL string) (listing.FetchResult, *fetchFailure) {
	collector := f.baseCollector.Clone()

	var (
		result  listing.FetchResult
		failure *fetchFailure
		once    sync.Once
	)

	collector.OnResponse(func(r *colly.Response) {
		once.Do(func() {
			contentType := ""
			if r.Headers != nil {
				contentType = r.Headers.Get("Content-Type")
			}
			result = listing.FetchResult{
				URL:         rawURL,
				FinalURL:    r.Request.URL.String(),
				StatusCode:  r.StatusCode,
				ContentType: contentType,
				Body:        append([]byte(nil), r.Body...),
			}
		})
	})

	collector.OnError(func(r *colly.Response, err error) {
		once.Do(func() {
			failure = classify(rawURL, r, err)
		})
	})

	start := time.Now()
	if err := collector.Visit(rawURL); err != nil {
		once.Do(func() {
			failure = classify(rawURL, nil, err)
		})
	}
	collector.Wait()

	if failure != nil {
		return listing.FetchResult{}, failure
	}
	if result.StatusCode == 0 {
		return listing.FetchResult{}, classify(rawURL, nil, errors.New("no response received"))
	}
	result.Duration = time.Since(start)
	return result, nil
}

// fetchFailure augments the public FetchError with the Retry-After hint
// parsed from a 429 response.
type fetchFailure struct {
	listing.FetchError
	retryAfterHint time.Duration
}

func classify(rawURL string, r *colly.Response, err error) *fetchFailure {
	failure := &fetchFailure{
		FetchError: listing.FetchError{
			URL:   rawURL,
			Cause: err,
		},
	}
	if r != nil && r.StatusCode > 0 {
		failure.Kind = listing.FetchHTTPError
		failure.StatusCode = r.StatusCode
		if r.StatusCode == http.StatusTooManyRequests && r.Headers != nil {
			if secs, perr := strconv.Atoi(r.Headers.Get("Retry-After")); perr == nil && secs > 0 {
				failure.retryAfterHint = time.Duration(secs) * time.Second
			}
		}
		return failure
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		failure.Kind = listing.FetchTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		failure.Kind = listing.FetchTimeout
	default:
		failure.Kind = listing.FetchNetworkError
	}
	return failure
}

// retryable reports whether another attempt may succeed. Client errors
// are terminal except 429; everything else transient.
func retryable(f *fetchFailure) bool {
	if f.Kind != listing.FetchHTTPError {
		return true
	}
	if f.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return f.StatusCode < 400 || f.StatusCode >= 500
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
