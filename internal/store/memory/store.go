// Package memory provides an in-memory Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
	"github.com/JakeFAU/ec-listings-pipeline/internal/store"
)

// Store keeps records in a map guarded by a mutex, which trivially
// serializes upserts per key.
type Store struct {
	mu      sync.Mutex
	records map[string]listing.BusinessRecord
	clock   listing.Clock
}

// New creates an empty in-memory store.
func New(clock listing.Clock) *Store {
	return &Store{
		records: make(map[string]listing.BusinessRecord),
		clock:   clock,
	}
}

// Upsert inserts or merges the candidate under its identity key.
func (s *Store) Upsert(_ context.Context, cand listing.Candidate) (listing.UpsertOutcome, error) {
	if cand.IdentityKey == "" {
		return "", listing.ErrIdentity
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[cand.IdentityKey]
	if !ok {
		s.records[cand.IdentityKey] = store.NewRecord(cand, now)
		return listing.UpsertInserted, nil
	}

	merged, changed := store.Merge(existing, cand, now)
	s.records[cand.IdentityKey] = merged
	if changed {
		return listing.UpsertMergedChanged, nil
	}
	return listing.UpsertMergedNoop, nil
}

// Get returns the record for an identity key. The returned record's
// snapshot is a copy; mutating it never touches stored state.
func (s *Store) Get(_ context.Context, identityKey string) (listing.BusinessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identityKey]
	if !ok {
		return listing.BusinessRecord{}, listing.ErrNotFound
	}
	rec.RawSnapshot = store.CopySnapshot(rec.RawSnapshot)
	return rec, nil
}

// List returns records matching the filter, ordered by name then key.
func (s *Store) List(_ context.Context, filter listing.ListFilter) ([]listing.BusinessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]listing.BusinessRecord, 0, len(s.records))
	needle := strings.ToLower(filter.NameContains)
	for _, rec := range s.records {
		if needle != "" && !strings.Contains(strings.ToLower(rec.Name), needle) {
			continue
		}
		if filter.PostalCode != "" && rec.PostalCode != filter.PostalCode {
			continue
		}
		rec.RawSnapshot = store.CopySnapshot(rec.RawSnapshot)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].IdentityKey < out[j].IdentityKey
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}
