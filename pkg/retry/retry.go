// Package retry provides a bounded retry combinator with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy configures Do. The zero value makes a single attempt.
type Policy struct {
	// Attempts is the total number of calls, including the first.
	Attempts int
	// BaseDelay is the wait after the first failure; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential part of the wait. Zero means uncapped.
	MaxDelay time.Duration
	// Jitter adds a uniformly random [0, Jitter) on top of every wait.
	Jitter time.Duration
	// DelayFor overrides the backoff for errors it reports true for, such as
	// a rate-limited page that needs a longer pause. Jitter is still added.
	DelayFor func(err error) (time.Duration, bool)
	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		delay += rand.N(p.Jitter)
	}
	return delay
}

// Do calls op until it succeeds or the policy's attempts are used up. The last
// error is returned unchanged. A context cancelled while waiting stops the
// loop and the returned error also matches ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := op(ctx, attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := p.delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, errors.Join(lastErr, err)
		}
	}
	return zero, lastErr
}

func (p Policy) delay(attempt int, err error) time.Duration {
	if p.DelayFor != nil {
		if d, ok := p.DelayFor(err); ok {
			if p.Jitter > 0 {
				d += rand.N(p.Jitter)
			}
			return d
		}
	}
	return p.Backoff(attempt)
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
