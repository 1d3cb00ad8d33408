// Package retry provides the exponential backoff helper shared by the scene
// chain builder and long-poll waiters.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// maxBackoffShift bounds the exponent so the doubling can never overflow a
// time.Duration even with a large base interval.
const maxBackoffShift = 16

// BackoffDelay computes the exponential delay before retry number attempt:
// base for attempt 1, 2*base for attempt 2, 4*base for attempt 3, and so on.
// Attempts below 1 yield zero delay.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base << uint(shift)
}

// WithJitter spreads a delay by up to ±25% so simultaneous retriers do not
// stampede a recovering backend.
func WithJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := float64(d) * 0.25
	return time.Duration(float64(d) + (rand.Float64()*2-1)*jitter)
}

// Sleep waits for d or until the context is cancelled, whichever comes
// first. A non-positive delay returns immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
