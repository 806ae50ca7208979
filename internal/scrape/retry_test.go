package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetryOnlyRetriesLoadAndPagination(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)

	require.True(t, p.ShouldRetry(LoadError("u", errors.New("timeout")), 1))
	require.True(t, p.ShouldRetry(PaginationError("u", 2, errors.New("stale")), 1))
	require.False(t, p.ShouldRetry(nil, 1))
	require.False(t, p.ShouldRetry(WriteError(errors.New("disk full")), 1))
	require.False(t, p.ShouldRetry(errors.New("unclassified"), 1))
}

func TestShouldRetryStopsAtMaxAttempts(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)
	err := LoadError("u", errors.New("timeout"))

	require.True(t, p.ShouldRetry(err, 1))
	require.True(t, p.ShouldRetry(err, 2))
	require.False(t, p.ShouldRetry(err, 3))
}

func TestShouldRetryNeverRetriesCancellation(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)
	require.False(t, p.ShouldRetry(LoadError("u", context.Canceled), 1))
	require.False(t, p.ShouldRetry(LoadError("u", context.DeadlineExceeded), 1))
}

func TestBackoffGrowsAndStaysUnderCap(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	cap := 500 * time.Millisecond
	p := NewExponentialRetryPolicy(10, base, cap)

	prevMin := time.Duration(0)
	for attempt := 1; attempt <= 6; attempt++ {
		d := p.Backoff(attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, cap)
		// Half the delay is fixed, so the floor grows until the cap bites.
		if d/2 > prevMin {
			prevMin = d / 2
		}
	}
}

func TestPauseReturnsEarlyOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Pause(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestPauseCompletesShortDelays(t *testing.T) {
	t.Parallel()

	require.NoError(t, Pause(context.Background(), time.Millisecond))
	require.NoError(t, Pause(context.Background(), 0))
}
