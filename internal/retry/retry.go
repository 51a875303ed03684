// Package retry runs provider calls under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	Attempts       int           // total tries, including the first
	BaseDelay      time.Duration // wait after the first failure
	Multiplier     float64       // growth per attempt, 2 when unset
	MaxDelay       time.Duration // cap on a single wait, 0 = uncapped
	AttemptTimeout time.Duration // per-attempt deadline, 0 = none
	Jitter         bool          // spread waits by +/-25%
}

// Backoff returns the wait before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	backoff := time.Duration(d)
	if p.MaxDelay > 0 && backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}
	if p.Jitter && backoff > 4 {
		backoff += time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	}
	return backoff
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Func is one attempt. attempt is 1-based.
type Func func(ctx context.Context, attempt int) error

// Hook observes a failed attempt that will be retried.
type Hook func(attempt int, err error, wait time.Duration)

// Do runs fn until it succeeds, returns a permanent error, the attempts run
// out, or ctx is done. A per-attempt timeout counts as an ordinary failure.
// The returned error wraps the last attempt's error.
func Do(ctx context.Context, p Policy, fn Func, hooks ...Hook) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = runAttempt(ctx, p.AttemptTimeout, attempt, fn)
		if lastErr == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(lastErr, &pe) {
			return fmt.Errorf("attempt %d: %w", attempt, pe.err)
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("attempt %d: %w", attempt, lastErr)
		}

		wait := p.Backoff(attempt)
		for _, h := range hooks {
			h(attempt, lastErr, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("attempt %d: %w (retry aborted: %w)", attempt, lastErr, err)
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func runAttempt(ctx context.Context, timeout time.Duration, attempt int, fn Func) error {
	if timeout <= 0 {
		return fn(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx, attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err() //nolint:wrapcheck // caller wraps
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller wraps
	case <-t.C:
		return nil
	}
}
