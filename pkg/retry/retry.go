// Package retry implements a bounded retry policy with capped exponential
// backoff. The policy is an explicit value passed into callers rather than
// ad hoc sleep loops, so attempt counts and delays show up in configuration
// and tests.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt failed with a retryable error.
// The last attempt's error is wrapped and available via errors.Unwrap.
var ErrExhausted = errors.New("retry attempts exhausted")

// Permanent marks an error as non-retryable. Do stops immediately and returns
// the wrapped error unchanged.
type Permanent struct {
	Err error
}

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

// Stop wraps err so Do treats it as a permanent failure.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return Permanent{Err: err}
}

// Policy describes a bounded retry loop.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	Multiplier  float64       // backoff growth factor per attempt
	MaxDelay    time.Duration // cap on any single delay
}

// DefaultPolicy matches the reservation write path: 4 attempts, 75ms base,
// doubling, capped at 1s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 4, BaseDelay: 75 * time.Millisecond, Multiplier: 2.0, MaxDelay: time.Second}
}

// Validate reports whether the policy is usable.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("retry: MaxAttempts must be at least 1")
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return errors.New("retry: delays must be non-negative")
	}
	if p.Multiplier < 1 {
		return errors.New("retry: Multiplier must be at least 1")
	}
	return nil
}

// Delay returns the backoff delay before attempt n (0-based; attempt 0 has no
// delay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, returns a permanent error, the policy is
// exhausted, or ctx is cancelled. Context cancellation wins over sleeping.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if d := p.Delay(attempt); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		last = err
	}
	return errors.Join(ErrExhausted, last)
}
