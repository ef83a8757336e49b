package poll_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/fwril/poll"
)

func TestUntil(t *testing.T) {
	t.Run("Returns as soon as the predicate holds", func(t *testing.T) {
		calls := 0
		err := poll.Until(context.Background(), poll.Config{Interval: time.Millisecond, MaxAttempts: 10},
			func(context.Context) (bool, error) {
				calls++
				return calls == 3, nil
			})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Evaluates the predicate exactly MaxAttempts times", func(t *testing.T) {
		calls := 0
		err := poll.Until(context.Background(), poll.Config{Interval: time.Millisecond, MaxAttempts: 30},
			func(context.Context) (bool, error) {
				calls++
				return false, nil
			})

		assert.ErrorIs(t, err, poll.ErrExhausted)
		assert.Equal(t, 30, calls)
	})

	t.Run("Aborts on a predicate error", func(t *testing.T) {
		boom := errors.New("boom")
		err := poll.Until(context.Background(), poll.Config{Interval: time.Millisecond, MaxAttempts: 5},
			func(context.Context) (bool, error) {
				return false, boom
			})

		assert.ErrorIs(t, err, boom)
	})

	t.Run("Stops waiting when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := poll.Until(ctx, poll.Config{Interval: time.Hour, MaxAttempts: 5},
			func(context.Context) (bool, error) {
				calls++
				cancel()
				return false, nil
			})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("Zero config still evaluates once", func(t *testing.T) {
		calls := 0
		err := poll.Until(context.Background(), poll.Config{}, func(context.Context) (bool, error) {
			calls++
			return false, nil
		})

		assert.ErrorIs(t, err, poll.ErrExhausted)
		assert.Equal(t, 1, calls)
	})
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := poll.Sleep(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
