// Package fetchfail classifies upstream and store failures so callers can
// decide between retrying, skipping a page, or giving up.
package fetchfail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

type Kind int

const (
	// Transient covers timeouts, connection resets and 5xx responses.
	// Retried with exponential backoff up to the policy's attempt budget.
	Transient Kind = iota
	// RateLimited is a 429. The server-provided Retry-After wait is
	// honored and the attempt does not count against the backoff budget.
	RateLimited
	// Malformed covers non-JSON bodies, unexpected shapes and 4xx
	// statuses other than 429. Not retried.
	Malformed
	// Persistence covers store failures. The enclosing batch is rolled
	// back and the run continues with the next batch.
	Persistence
	// Fatal covers misconfiguration surfaced at startup.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	case Malformed:
		return "malformed"
	case Persistence:
		return "persistence"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

type Error struct {
	Kind       Kind
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failure (status %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("%s failure: %s", e.Kind, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// FromStatus maps an HTTP status code onto the taxonomy. Callers pass the
// Retry-After header value (may be empty) so 429s carry the server hint.
func FromStatus(status int, retryAfter string) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		wait := 60 * time.Second
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
		return &Error{Kind: RateLimited, Status: status, RetryAfter: wait}
	case status >= 500:
		return &Error{Kind: Transient, Status: status}
	default:
		return &Error{Kind: Malformed, Status: status}
	}
}

// FromTransport classifies errors raised before a status code exists.
// Timeouts and connection failures are transient, everything else is not.
func FromTransport(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: Transient, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: Transient, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{Kind: Transient, Err: err}
	}
	return &Error{Kind: Malformed, Err: err}
}

func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

func IsTransient(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Transient
}

func IsRateLimited(err error) bool {
	k, ok := KindOf(err)
	return ok && k == RateLimited
}

// IsTimeout reports whether the failure was a deadline rather than a bad
// response, looking through the wrapped transport error.
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// RetryAfterOf returns the server-provided wait for rate-limit errors,
// zero otherwise.
func RetryAfterOf(err error) time.Duration {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == RateLimited {
		return fe.RetryAfter
	}
	return 0
}
