package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptTimeout is returned when a single attempt exceeds Policy.Timeout.
// It wraps context.DeadlineExceeded.
var ErrAttemptTimeout = fmt.Errorf("attempt timed out: %w", context.DeadlineExceeded)

// Policy configures Do.
type Policy struct {
	MaxRetries     int           // Retries after the first attempt (default: 2)
	Timeout        time.Duration // Hard timeout of one attempt (default: 60s, 0 = none)
	InitialBackoff time.Duration // Wait before the first retry (default: 1s)
	MaxBackoff     time.Duration // Backoff cap (default: 30s)
	Multiplier     float64       // Backoff growth factor (default: 2.0)
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     2,
		Timeout:        60 * time.Second,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// MaxAttempts returns the total number of attempts allowed.
func (p Policy) MaxAttempts() int {
	return max(p.MaxRetries, 0) + 1
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 2.0
	}
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * mult)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

// Attempt describes a failed attempt, passed to the Observer.
type Attempt struct {
	// Number is the 1-based attempt number.
	Number int

	// MaxAttempts is the attempt limit of the policy.
	MaxAttempts int

	// Err is the error of this attempt.
	Err error

	// Final is true when no further attempt will be made.
	Final bool

	// Backoff is the wait before the next attempt; zero when Final.
	Backoff time.Duration
}

// Observer is notified after every failed attempt.
type Observer func(Attempt)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do stops retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is cancelled. It returns the number of attempts made and
// the last error.
//
// Each attempt runs under its own context bounded by p.Timeout and detached
// from ctx cancellation, so a dispatched attempt finishes or times out on its
// own. When the timeout expires the attempt is abandoned and counts as a
// failure. Cancelling ctx prevents further attempts and interrupts backoff.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, observe Observer) (int, error) {
	maxAttempts := p.MaxAttempts()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, lastErr
			}
			return attempt - 1, err
		}

		err := runAttempt(ctx, p.Timeout, fn)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		final := attempt == maxAttempts || IsPermanent(err) || ctx.Err() != nil
		var backoff time.Duration
		if !final {
			backoff = p.Backoff(attempt)
		}
		if observe != nil {
			observe(Attempt{Number: attempt, MaxAttempts: maxAttempts, Err: err, Final: final, Backoff: backoff})
		}
		if final {
			return attempt, err
		}

		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return attempt, err
			}
		}
	}
	return maxAttempts, lastErr
}

// runAttempt runs fn with a hard timeout. The goroutine of an abandoned
// attempt writes to a buffered channel and exits when fn returns.
func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	attemptCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(attemptCtx, timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(attemptCtx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded) {
			return ErrAttemptTimeout
		}
		return err
	case <-attemptCtx.Done():
		return ErrAttemptTimeout
	}
}
