package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"arenasync-backend/lib/fetchfail"

	"github.com/stretchr/testify/require"
)

func TestBackoffGrowth(t *testing.T) {
	p := Policy{MaxAttempts: 5, Base: 2 * time.Second, Factor: 2.0}

	require.Equal(t, 2*time.Second, p.Backoff(0))
	require.Equal(t, 4*time.Second, p.Backoff(1))
	require.Equal(t, 8*time.Second, p.Backoff(2))

	prev := time.Duration(0)
	for k := 0; k < 8; k++ {
		d := p.Backoff(k)
		require.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestLimiterBounds(t *testing.T) {
	l := Limiter{Base: 2 * time.Second, Floor: 500 * time.Millisecond}

	for i := 0; i < 1000; i++ {
		d := l.Next()
		require.GreaterOrEqual(t, d, 500*time.Millisecond)
		require.LessOrEqual(t, d, time.Duration(float64(l.Base)*1.2))
	}
}

func TestLimiterFloor(t *testing.T) {
	// a tiny base must still never sleep less than the floor
	l := Limiter{Base: 100 * time.Millisecond, Floor: 500 * time.Millisecond}
	for i := 0; i < 100; i++ {
		require.Equal(t, 500*time.Millisecond, l.Next())
	}
}

func TestDoRetriesTransient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := Policy{MaxAttempts: 3, Base: time.Millisecond, Factor: 2.0}

	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fetchfail.New(fetchfail.Transient, errors.New("reset"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := Policy{MaxAttempts: 3, Base: time.Millisecond, Factor: 2.0}

	calls := 0
	boom := fetchfail.New(fetchfail.Transient, errors.New("boom"))
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnMalformed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := Policy{MaxAttempts: 3, Base: time.Millisecond, Factor: 2.0}

	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return fetchfail.New(fetchfail.Malformed, errors.New("not json"))
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDoHonorsRateLimitOutsideBudget(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := Policy{MaxAttempts: 2, Base: time.Millisecond, Factor: 2.0}

	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &fetchfail.Error{
				Kind:       fetchfail.RateLimited,
				Status:     429,
				RetryAfter: time.Millisecond,
			}
		}
		if calls <= 3 {
			return fetchfail.New(fetchfail.Transient, errors.New("flaky"))
		}
		return nil
	})
	// 1 rate-limited call + 2 transient attempts + the retry that succeeds
	// would exceed the budget, so the transient budget of 2 runs out.
	require.Error(t, err)
	require.Equal(t, 3, calls)
}
