package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
	"github.com/JakeFAU/ec-listings-pipeline/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func TestUpsertInsertThenNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New(newClock())
	cand := listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "株式会社 山田商店",
		SourceURL:   "http://example.jp/a",
	}

	outcome, err := s.Upsert(ctx, cand)
	require.NoError(t, err)
	assert.Equal(t, listing.UpsertInserted, outcome)

	outcome, err = s.Upsert(ctx, cand)
	require.NoError(t, err)
	assert.Equal(t, listing.UpsertMergedNoop, outcome)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertMergeFillsFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New(newClock())

	_, err := s.Upsert(ctx, listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "株式会社 山田商店",
		SourceURL:   "http://example.jp/a",
	})
	require.NoError(t, err)

	outcome, err := s.Upsert(ctx, listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "株式会社 山田商店",
		Phone:       "03-1234-5678",
		SourceURL:   "http://example.jp/b",
	})
	require.NoError(t, err)
	assert.Equal(t, listing.UpsertMergedChanged, outcome)

	rec, err := s.Get(ctx, "v1:abc")
	require.NoError(t, err)
	assert.Equal(t, "03-1234-5678", rec.Phone)
	assert.Equal(t, "株式会社 山田商店", rec.Name)
	assert.True(t, rec.LastSeenAt.After(rec.FirstSeenAt))
}

func TestUpsertRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	s := memory.New(newClock())
	_, err := s.Upsert(context.Background(), listing.Candidate{Name: "nameless"})
	require.ErrorIs(t, err, listing.ErrIdentity)
}

func TestGetReturnsSnapshotCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New(newClock())
	_, err := s.Upsert(ctx, listing.Candidate{
		IdentityKey: "v1:abc",
		Name:        "株式会社 山田商店",
		RawSnapshot: map[listing.FieldKind]string{
			listing.FieldName: "株式会社　山田商店",
		},
	})
	require.NoError(t, err)

	rec, err := s.Get(ctx, "v1:abc")
	require.NoError(t, err)
	rec.RawSnapshot[listing.FieldName] = "mutated"
	rec.RawSnapshot[listing.FieldPhone] = "mutated"

	again, err := s.Get(ctx, "v1:abc")
	require.NoError(t, err)
	assert.Equal(t, "株式会社　山田商店", again.RawSnapshot[listing.FieldName])
	assert.NotContains(t, again.RawSnapshot, listing.FieldPhone)

	listed, err := s.List(ctx, listing.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].RawSnapshot[listing.FieldName] = "mutated"

	again, err = s.Get(ctx, "v1:abc")
	require.NoError(t, err)
	assert.Equal(t, "株式会社　山田商店", again.RawSnapshot[listing.FieldName])
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	s := memory.New(newClock())
	_, err := s.Get(context.Background(), "v1:missing")
	require.ErrorIs(t, err, listing.ErrNotFound)
}

func TestConcurrentUpsertsConverge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New(newClock())

	candidates := make([]listing.Candidate, 16)
	for i := range candidates {
		candidates[i] = listing.Candidate{
			IdentityKey: "v1:abc",
			Name:        "株式会社 山田商店",
			SourceURL:   fmt.Sprintf("http://example.jp/page-%d", i),
		}
	}
	candidates[5].Phone = "03-1234-5678"
	candidates[11].Email = "info@yamada.example.jp"

	var wg sync.WaitGroup
	for _, cand := range candidates {
		wg.Add(1)
		go func(c listing.Candidate) {
			defer wg.Done()
			_, err := s.Upsert(ctx, c)
			assert.NoError(t, err)
		}(cand)
	}
	wg.Wait()

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rec, err := s.Get(ctx, "v1:abc")
	require.NoError(t, err)
	assert.Equal(t, "株式会社 山田商店", rec.Name)
	assert.Equal(t, "03-1234-5678", rec.Phone)
	assert.Equal(t, "info@yamada.example.jp", rec.Email)
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New(newClock())
	seed := []listing.Candidate{
		{IdentityKey: "v1:a", Name: "Acme Trading", PostalCode: "123-4567"},
		{IdentityKey: "v1:b", Name: "Beta Foods", PostalCode: "765-4321"},
		{IdentityKey: "v1:c", Name: "acme holdings", PostalCode: "123-4567"},
	}
	for _, cand := range seed {
		_, err := s.Upsert(ctx, cand)
		require.NoError(t, err)
	}

	records, err := s.List(ctx, listing.ListFilter{NameContains: "acme"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Acme Trading", records[0].Name)
	assert.Equal(t, "acme holdings", records[1].Name)

	records, err = s.List(ctx, listing.ListFilter{PostalCode: "765-4321"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Beta Foods", records[0].Name)

	records, err = s.List(ctx, listing.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
