// Package retry implements bounded retries with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultPolicy retries three times with 2s, 4s delays in between.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2}

// Do runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled. The delay grows geometrically between attempts.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("retry: nil function")
	}
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	multiplier := policy.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * multiplier)
	}
	return fmt.Errorf("retry: %d attempts failed: %w", attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
