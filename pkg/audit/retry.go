package audit

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// ErrorClass is the outcome classification for a single provider call.
type ErrorClass int

const (
	// ClassTransient marks throttling and network-level failures that are
	// worth retrying after a backoff.
	ClassTransient ErrorClass = iota
	// ClassFatal marks failures retrying cannot fix, such as a missing object
	// or denied access.
	ClassFatal
)

// Classifier maps a provider error onto the retry taxonomy. It is never
// called with a nil error.
type Classifier func(error) ErrorClass

// RetryExhausted reports that a call stayed transient through every allowed
// attempt. The last underlying provider error is attached.
type RetryExhausted struct {
	Attempts int
	Last     error
}

func (e *RetryExhausted) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

// Cause supports unwrapping through pkg/errors.
func (e *RetryExhausted) Cause() error { return e.Last }

// Policy retries a single provider call with exponential backoff on transient
// failures. Every attempt passes through the shared limiter before dispatch.
// Backoff state is per call and discarded once the call resolves; different
// calls share nothing but the limiter.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Cap on a single backoff delay; 0 means uncapped.
	MaxDelay time.Duration
	Classify Classifier
	Limiter  *Limiter
}

// Do runs op until it succeeds, fails fatally, or retries are exhausted. It
// returns the number of attempts made alongside the terminal error: nil on
// success, the provider error on a fatal failure, or *RetryExhausted.
func (p *Policy) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, attempt-1); err != nil {
				return attempt, err
			}
		}
		if err := p.Limiter.Acquire(ctx); err != nil {
			return attempt, err
		}
		err := op(ctx)
		p.Limiter.Release()

		if err == nil {
			return attempt + 1, nil
		}
		if p.Classify(err) == ClassFatal {
			return attempt + 1, err
		}
		last = err
	}
	return maxAttempts, &RetryExhausted{Attempts: maxAttempts, Last: last}
}

// Ceiling for policies that leave MaxDelay unset.
const maxBackoff = 5 * time.Minute

// backoff is base*2^attempt capped at MaxDelay, plus up to 10% jitter so
// throttled workers don't retry in lockstep. Doubling stops once the cap is
// reached, so a large attempt count can never overflow the delay.
func (p *Policy) backoff(attempt int) time.Duration {
	limit := p.MaxDelay
	if limit <= 0 {
		limit = maxBackoff
	}
	d := p.BaseDelay
	if d < 0 {
		d = 0
	}
	for i := 0; i < attempt && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}
	return d + time.Duration(rand.Int63n(int64(d)/10+1))
}

func (p *Policy) sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.backoff(attempt))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
