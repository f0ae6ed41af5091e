package listing

import (
	"context"
	"time"
)

// Fetcher retrieves a single URL and returns the raw page, or a
// classified fetch error. Implementations share one rate-limit clock
// across all callers so the total request rate stays under the ceiling.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// Extractor parses raw page content into a Candidate with normalized
// fields. Absent fields stay empty; ExtractionError is returned only
// when nothing usable could be extracted.
type Extractor interface {
	Extract(body []byte, contentType, sourceURL string) (Candidate, error)
}

// Store persists candidates with idempotent, per-key linearizable
// upserts and exposes the read API consumed by export and reporting.
type Store interface {
	Upsert(ctx context.Context, cand Candidate) (UpsertOutcome, error)
	Get(ctx context.Context, identityKey string) (BusinessRecord, error)
	List(ctx context.Context, filter ListFilter) ([]BusinessRecord, error)
	Count(ctx context.Context) (int, error)
	Close()
}

// Clock returns the current time (injectable for testing).
type Clock interface {
	Now() time.Time
}
