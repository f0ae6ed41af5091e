// Package store holds the merge rule shared by every Store backend, so
// the completeness-preferring semantics stay identical between Postgres
// and the in-memory implementation.
package store

import (
	"time"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
)

// NewRecord builds the row inserted for a previously unseen identity key.
func NewRecord(cand listing.Candidate, now time.Time) listing.BusinessRecord {
	rec := listing.BusinessRecord{
		IdentityKey: cand.IdentityKey,
		SourceURL:   cand.SourceURL,
		FirstSeenAt: now,
		LastSeenAt:  now,
		RawSnapshot: CopySnapshot(cand.RawSnapshot),
	}
	for _, kind := range listing.AllFieldKinds {
		rec.SetField(kind, cand.Field(kind))
	}
	return rec
}

// Merge applies a candidate to an existing record under the
// completeness-preferring rule: a non-empty incoming field fills an
// empty stored field, and overwrites a non-empty one only when the
// candidate comes from a different source URL (a data refresh). Empty
// incoming fields never erase stored data. The returned flag reports
// whether any field changed; LastSeenAt advances monotonically either
// way and does not count as a field change.
func Merge(existing listing.BusinessRecord, cand listing.Candidate, now time.Time) (listing.BusinessRecord, bool) {
	merged := existing
	merged.RawSnapshot = CopySnapshot(existing.RawSnapshot)

	refresh := cand.SourceURL != "" && cand.SourceURL != existing.SourceURL
	changed := false

	for _, kind := range listing.AllFieldKinds {
		incoming := cand.Field(kind)
		if incoming == "" {
			continue
		}
		stored := merged.Field(kind)
		if stored == incoming {
			continue
		}
		if stored == "" || refresh {
			merged.SetField(kind, incoming)
			changed = true
		}
	}

	for kind, raw := range cand.RawSnapshot {
		if _, ok := merged.RawSnapshot[kind]; !ok || refresh {
			if merged.RawSnapshot == nil {
				merged.RawSnapshot = make(map[listing.FieldKind]string)
			}
			merged.RawSnapshot[kind] = raw
		}
	}

	if refresh && changed {
		merged.SourceURL = cand.SourceURL
	}
	if now.After(merged.LastSeenAt) {
		merged.LastSeenAt = now
	}
	return merged, changed
}

// CopySnapshot clones a raw-value map so readers can never alias stored
// state. A nil map stays nil.
func CopySnapshot(in map[listing.FieldKind]string) map[listing.FieldKind]string {
	if in == nil {
		return nil
	}
	out := make(map[listing.FieldKind]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
