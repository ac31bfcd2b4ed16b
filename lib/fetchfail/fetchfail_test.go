package fetchfail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	{
		err := FromStatus(429, "30")
		require.True(t, IsRateLimited(err))
		require.Equal(t, 30*time.Second, RetryAfterOf(err))
	}
	{
		// missing or garbage Retry-After falls back to a fixed wait
		err := FromStatus(429, "")
		require.Equal(t, 60*time.Second, RetryAfterOf(err))
		err = FromStatus(429, "soon")
		require.Equal(t, 60*time.Second, RetryAfterOf(err))
	}
	{
		require.True(t, IsTransient(FromStatus(503, "")))
		require.False(t, IsTransient(FromStatus(404, "")))
		kind, ok := KindOf(FromStatus(404, ""))
		require.True(t, ok)
		require.Equal(t, Malformed, kind)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestFromTransport(t *testing.T) {
	require.True(t, IsTransient(FromTransport(timeoutError{})))
	require.True(t, IsTransient(FromTransport(context.DeadlineExceeded)))
	require.True(t, IsTransient(FromTransport(&net.OpError{Op: "dial", Err: errors.New("connection refused")})))
	require.False(t, IsTransient(FromTransport(errors.New("invalid character '<'"))))
}

func TestIsTimeout(t *testing.T) {
	require.True(t, IsTimeout(FromTransport(timeoutError{})))
	require.True(t, IsTimeout(fmt.Errorf("fetch: %w", context.DeadlineExceeded)))
	require.False(t, IsTimeout(FromStatus(500, "")))
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := New(Persistence, fmt.Errorf("commit: %w", inner))
	require.ErrorIs(t, err, inner)
}
