// Package retry wraps fallible backend calls in a bounded exponential backoff.
//
// Only transient failures are retried: errors that carry an HTTP-like status of
// 503 or any other 5xx. Everything else, and the last transient failure once
// retries are exhausted, is returned to the caller unchanged.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
)

// Policy configures a bounded retry. The zero value performs a single attempt.
// A Policy holds no mutable state, so one value can be shared by concurrent calls.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialDelay is the wait before the first retry; it doubles on every retry.
	InitialDelay time.Duration
	// Logger receives a debug record per backoff. Nil disables logging.
	Logger *slog.Logger
	// OnRetry is called before each backoff wait with the 1-based number of the
	// attempt that failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy retries three times after 1s, 2s and 4s.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, InitialDelay: DefaultInitialDelay}
}

// Backoff returns a fresh backoff sequence for one call.
func (p Policy) Backoff() goretry.Backoff {
	var b goretry.Backoff
	if p.InitialDelay > 0 {
		b = goretry.NewExponential(p.InitialDelay)
	} else {
		b = goretry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return goretry.WithMaxRetries(uint64(retries), b)
}

// Do runs op until it succeeds, fails with a non-transient error, or the retry
// budget is spent.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		result  T
		attempt int
		lastErr error
	)

	inner := p.Backoff()
	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := inner.Next()
		if !stop {
			p.observe(attempt, delay, lastErr)
		}
		return delay, stop
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		lastErr = err
		if IsTransient(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (p Policy) observe(attempt int, delay time.Duration, err error) {
	if p.Logger != nil {
		p.Logger.Debug("transient failure, backing off",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}
	if p.OnRetry != nil {
		p.OnRetry(attempt, delay, err)
	}
}

// StatusOf extracts an HTTP-like status from anywhere in err's chain. It
// understands errors exposing HTTPStatus() or HTTPStatusCode(), the latter being
// what AWS smithy response errors implement.
func StatusOf(err error) (int, bool) {
	var hs interface{ HTTPStatus() int }
	if errors.As(err, &hs) {
		if code := hs.HTTPStatus(); code != 0 {
			return code, true
		}
	}
	var hsc interface{ HTTPStatusCode() int }
	if errors.As(err, &hsc) {
		if code := hsc.HTTPStatusCode(); code != 0 {
			return code, true
		}
	}
	return 0, false
}

// IsTransient reports whether err is a service-unavailable or server-class failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	code, ok := StatusOf(err)
	if !ok {
		return false
	}
	return code == http.StatusServiceUnavailable || code >= http.StatusInternalServerError
}

// StatusError attaches an HTTP-like status to an error.
type StatusError struct {
	Status int
	Err    error
}

// NewStatusError builds a StatusError with a plain message.
func NewStatusError(status int, msg string) *StatusError {
	return &StatusError{Status: status, Err: errors.New(msg)}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Status, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus implements the status lookup used by IsTransient.
func (e *StatusError) HTTPStatus() int { return e.Status }
