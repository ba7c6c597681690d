package pipeline

import (
	"context"
	"time"
)

// RetryPolicy wraps a fallible external call with bounded exponential backoff.
// Only retryable (transient-class) errors are retried; validation and
// not-found errors fail fast.
type RetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxAttempts  int

	// sleep is replaceable in tests to avoid real waits
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the standard policy: 1s initial delay, 2x
// multiplier, 10s cap, 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		MaxAttempts:  3,
	}
}

// Delay returns the backoff applied after a failed attempt (1-based):
// min(MaxDelay, InitialDelay * Multiplier^(attempt-1)).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do invokes fn until it succeeds, returns a non-retryable error, or the
// attempt cap is reached. onAttempt is called before each attempt with the
// 1-based attempt number so callers can persist the counter. The returned
// error is always a ClassifiedError carrying the total attempt count.
func (p RetryPolicy) Do(ctx context.Context, onAttempt func(attempt int), fn func(ctx context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last *ClassifiedError
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if onAttempt != nil {
			onAttempt(attempt)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		last = Classify(err)
		last.Attempts = attempt
		if !last.Retryable {
			return last
		}
		if attempt == p.MaxAttempts {
			return last
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			ce := Classify(err)
			ce.Attempts = attempt
			return ce
		}
	}
	return last
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
