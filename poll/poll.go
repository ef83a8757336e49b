// Package poll runs bounded, cancellable sleep-and-recheck loops.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by Until when the predicate never held within
// the configured number of attempts.
var ErrExhausted = errors.New("poll attempts exhausted")

// Config defines configuration for polling operations like waiting for a
// link to come up.
type Config struct {
	// Interval is the time between polling attempts
	Interval time.Duration
	// MaxAttempts is the maximum number of times the predicate is evaluated
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	return c
}

// Predicate reports whether the awaited condition holds. A non-nil error
// aborts polling immediately.
type Predicate func(ctx context.Context) (bool, error)

// Until evaluates pred up to MaxAttempts times, sleeping Interval between
// attempts. The first evaluation happens immediately. It returns nil once
// pred holds, ErrExhausted when attempts run out, or the context error if
// ctx is done while waiting.
func Until(ctx context.Context, config Config, pred Predicate) error {
	config = config.withDefaults()

	for attempt := 1; ; attempt++ {
		ok, err := pred(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt >= config.MaxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrExhausted, attempt)
		}
		if err := Sleep(ctx, config.Interval); err != nil {
			return err
		}
	}
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
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
