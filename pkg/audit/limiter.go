package audit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is the admission gate in front of every provider request. It
// combines a rolling requests-per-second budget with a cap on concurrent
// in-flight requests; a caller holds capacity from Acquire until Release.
// When both limits are configured the stricter one governs, since Acquire
// waits on both. The limiter never retries and never fails on its own; the
// only error it can return is the caller's context expiring.
type Limiter struct {
	bucket   *rate.Limiter
	inflight chan struct{}
}

// NewLimiter configures the gate. perSec <= 0 disables the rate budget and
// maxInflight <= 0 disables the concurrency cap.
func NewLimiter(perSec float64, maxInflight int) *Limiter {
	l := &Limiter{}
	if perSec > 0 {
		l.bucket = rate.NewLimiter(rate.Limit(perSec), 1)
	}
	if maxInflight > 0 {
		l.inflight = make(chan struct{}, maxInflight)
	}
	return l
}

// Acquire blocks until a unit of send capacity is available or ctx is done.
// Every successful Acquire must be paired with exactly one Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.inflight != nil {
		select {
		case l.inflight <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if l.bucket != nil {
		if err := l.bucket.Wait(ctx); err != nil {
			if l.inflight != nil {
				<-l.inflight
			}
			return err
		}
	}
	return nil
}

// Release returns in-flight capacity once the provider call has completed.
func (l *Limiter) Release() {
	if l.inflight != nil {
		<-l.inflight
	}
}
