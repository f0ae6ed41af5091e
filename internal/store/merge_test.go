package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
	"github.com/JakeFAU/ec-listings-pipeline/internal/store"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func baseRecord() listing.BusinessRecord {
	return store.NewRecord(listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "株式会社 山田商店",
		Address:     "東京都千代田区1-2-3",
		SourceURL:   "http://example.jp/a",
		RawSnapshot: map[listing.FieldKind]string{
			listing.FieldName: "株式会社　山田商店",
		},
	}, t0)
}

func TestNewRecord(t *testing.T) {
	t.Parallel()

	rec := baseRecord()
	assert.Equal(t, "v1:abc", rec.IdentityKey)
	assert.Equal(t, "株式会社 山田商店", rec.Name)
	assert.Equal(t, t0, rec.FirstSeenAt)
	assert.Equal(t, t0, rec.LastSeenAt)
	assert.Equal(t, "株式会社　山田商店", rec.RawSnapshot[listing.FieldName])
}

func TestMergeFillsEmptyFields(t *testing.T) {
	t.Parallel()

	later := t0.Add(time.Hour)
	merged, changed := store.Merge(baseRecord(), listing.Candidate{
		IdentityKey: "v1:abc",
		Phone:       "03-1234-5678",
		SourceURL:   "http://example.jp/a",
	}, later)

	assert.True(t, changed)
	assert.Equal(t, "03-1234-5678", merged.Phone)
	assert.Equal(t, "株式会社 山田商店", merged.Name)
	assert.Equal(t, later, merged.LastSeenAt)
	assert.Equal(t, t0, merged.FirstSeenAt)
}

func TestMergeEmptyNeverErases(t *testing.T) {
	t.Parallel()

	merged, changed := store.Merge(baseRecord(), listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "",
		Address:     "",
		SourceURL:   "http://example.jp/a",
	}, t0.Add(time.Hour))

	assert.False(t, changed)
	assert.Equal(t, "株式会社 山田商店", merged.Name)
	assert.Equal(t, "東京都千代田区1-2-3", merged.Address)
}

func TestMergeSameSourceDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	merged, changed := store.Merge(baseRecord(), listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "別の名前",
		SourceURL:   "http://example.jp/a",
	}, t0.Add(time.Hour))

	assert.False(t, changed)
	assert.Equal(t, "株式会社 山田商店", merged.Name)
}

func TestMergeRefreshOverwrites(t *testing.T) {
	t.Parallel()

	merged, changed := store.Merge(baseRecord(), listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "株式会社 山田商店 本店",
		SourceURL:   "http://example.jp/b",
	}, t0.Add(time.Hour))

	assert.True(t, changed)
	assert.Equal(t, "株式会社 山田商店 本店", merged.Name)
	assert.Equal(t, "http://example.jp/b", merged.SourceURL)
}

func TestMergeRefreshWithoutChangesKeepsSource(t *testing.T) {
	t.Parallel()

	merged, changed := store.Merge(baseRecord(), listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "株式会社 山田商店",
		SourceURL:   "http://example.jp/b",
	}, t0.Add(time.Hour))

	assert.False(t, changed)
	assert.Equal(t, "http://example.jp/a", merged.SourceURL)
}

func TestMergeNoopStillAdvancesLastSeen(t *testing.T) {
	t.Parallel()

	later := t0.Add(2 * time.Hour)
	merged, changed := store.Merge(baseRecord(), listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "株式会社 山田商店",
		SourceURL:   "http://example.jp/a",
	}, later)

	assert.False(t, changed)
	assert.Equal(t, later, merged.LastSeenAt)
}

func TestMergeLastSeenNeverGoesBackwards(t *testing.T) {
	t.Parallel()

	earlier := t0.Add(-time.Hour)
	merged, _ := store.Merge(baseRecord(), listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "株式会社 山田商店",
		SourceURL:   "http://example.jp/a",
	}, earlier)

	assert.Equal(t, t0, merged.LastSeenAt)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	existing := baseRecord()
	_, _ = store.Merge(existing, listing.Candidate{
		IdentityKey: "v1:abc",
		Phone:       "03-1234-5678",
		SourceURL:   "http://example.jp/b",
		RawSnapshot: map[listing.FieldKind]string{
			listing.FieldPhone: "０３－１２３４－５６７８",
		},
	}, t0.Add(time.Hour))

	assert.Empty(t, existing.Phone)
	assert.NotContains(t, existing.RawSnapshot, listing.FieldPhone)
}

func TestMergeSnapshotUnion(t *testing.T) {
	t.Parallel()

	merged, _ := store.Merge(baseRecord(), listing.Candidate{
		IdentityKey: "v1:abc",
		Phone:       "03-1234-5678",
		SourceURL:   "http://example.jp/a",
		RawSnapshot: map[listing.FieldKind]string{
			listing.FieldPhone: "０３－１２３４－５６７８",
		},
	}, t0.Add(time.Hour))

	assert.Equal(t, "株式会社　山田商店", merged.RawSnapshot[listing.FieldName])
	assert.Equal(t, "０３－１２３４－５６７８", merged.RawSnapshot[listing.FieldPhone])
}
