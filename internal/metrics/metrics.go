// Package metrics exposes Prometheus collectors for the listings pipeline.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal       *prometheus.CounterVec
	fetchRetriesTotal       prometheus.Counter
	fetchFailuresTotal      *prometheus.CounterVec
	upsertsTotal            *prometheus.CounterVec
	rateLimitDelaySeconds   prometheus.Histogram
	extractionFailuresTotal prometheus.Counter

	once sync.Once
)

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_pages_fetched_total",
				Help: "Pages fetched successfully, labeled by final HTTP status.",
			},
			[]string{"status"},
		)
		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "listings_fetch_retries_total",
				Help: "Fetch attempts beyond the first for any URL.",
			},
		)
		fetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_fetch_failures_total",
				Help: "Terminal fetch failures, labeled by classified reason.",
			},
			[]string{"reason"},
		)
		upsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_upserts_total",
				Help: "Store upserts, labeled by outcome (inserted, merged, merged_noop).",
			},
			[]string{"outcome"},
		)
		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "listings_rate_limit_delay_seconds",
				Help:    "Delay introduced by the shared request-interval clock.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		)
		extractionFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "listings_extraction_failures_total",
				Help: "Pages from which no usable fields could be extracted.",
			},
		)
	})
}

// ObservePageFetched records a successful fetch with its final status.
func ObservePageFetched(status int) {
	if pagesFetchedTotal == nil {
		return
	}
	pagesFetchedTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveFetchRetry records one retry attempt.
func ObserveFetchRetry() {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.Inc()
}

// ObserveFetchFailure records a terminal fetch failure by reason.
func ObserveFetchFailure(reason string) {
	if fetchFailuresTotal == nil {
		return
	}
	fetchFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveUpsert records an upsert outcome.
func ObserveUpsert(outcome string) {
	if upsertsTotal == nil {
		return
	}
	upsertsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records time spent waiting on the shared clock.
func ObserveRateLimitDelay(d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// ObserveExtractionFailure records a page with zero extractable fields.
func ObserveExtractionFailure() {
	if extractionFailuresTotal == nil {
		return
	}
	extractionFailuresTotal.Inc()
}
