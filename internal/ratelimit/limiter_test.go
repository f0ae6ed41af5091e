package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ec-listings-pipeline/internal/ratelimit"
)

func TestWaitEnforcesInterval(t *testing.T) {
	t.Parallel()

	const interval = 50 * time.Millisecond
	l := ratelimit.New(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	// First slot is immediate, the next two each wait one interval.
	assert.GreaterOrEqual(t, time.Since(start), 2*interval-5*time.Millisecond)
}

func TestWaitDisabledInterval(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitRespectsContext(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(time.Hour)
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := l.Wait(cancelled)
	assert.Error(t, err)
}
