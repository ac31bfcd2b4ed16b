// Package retry holds the backoff policy shared by every job: exponential
// backoff between retry attempts of a single fetch, and a separate jittered
// steady-state delay between successful batches.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"arenasync-backend/lib/fetchfail"
)

// Policy retries an operation with exponential backoff. Rate-limit errors
// wait out the server hint and do not consume an attempt.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Base:        2 * time.Second,
		Factor:      2.0,
	}
}

// Backoff returns the delay before retrying after the given attempt,
// counting attempts from zero.
func (p Policy) Backoff(attempt int) time.Duration {
	return time.Duration(float64(p.Base) * math.Pow(p.Factor, float64(attempt)))
}

// Do runs op up to MaxAttempts times. Transient failures back off and
// retry; rate limits sleep for the server-provided wait without consuming
// an attempt; anything else returns immediately.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if fetchfail.IsRateLimited(err) {
			wait := fetchfail.RetryAfterOf(err)
			slog.Warn("rate limited by upstream", "wait", wait)
			if err := Sleep(ctx, wait); err != nil {
				return err
			}
			attempt--
			continue
		}
		if !fetchfail.IsTransient(err) {
			return err
		}
		if attempt < p.MaxAttempts-1 {
			wait := p.Backoff(attempt)
			slog.Info("backing off before retry", "attempt", attempt+1, "wait", wait)
			if err := Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// Limiter spaces out successive successful requests with a jittered delay
// so independent runs don't hammer the upstream in lockstep.
type Limiter struct {
	Base  time.Duration
	Floor time.Duration
}

func DefaultLimiter() Limiter {
	return Limiter{
		Base:  2 * time.Second,
		Floor: 500 * time.Millisecond,
	}
}

// Next returns the delay to sleep before the next request: the base delay
// plus uniform jitter in [-20%, +20%], never below the floor.
func (l Limiter) Next() time.Duration {
	jitter := (rand.Float64()*0.4 - 0.2) * float64(l.Base)
	d := l.Base + time.Duration(jitter)
	if d < l.Floor {
		d = l.Floor
	}
	return d
}

// Delay sleeps for a jittered interval and reports how long it slept.
func (l Limiter) Delay(ctx context.Context) (time.Duration, error) {
	d := l.Next()
	if err := Sleep(ctx, d); err != nil {
		return 0, err
	}
	return d, nil
}

// Sleep blocks for d unless the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
