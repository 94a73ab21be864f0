package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff_Growth(t *testing.T) {
	p := Policy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	}

	assert.Equal(t, time.Duration(0), ExponentialBackoff(0, p))
	assert.Equal(t, 100*time.Millisecond, ExponentialBackoff(1, p))
	assert.Equal(t, 200*time.Millisecond, ExponentialBackoff(2, p))
	assert.Equal(t, 400*time.Millisecond, ExponentialBackoff(3, p))
	assert.Equal(t, 800*time.Millisecond, ExponentialBackoff(4, p))
	assert.Equal(t, time.Second, ExponentialBackoff(5, p), "cap applies")
	assert.Equal(t, time.Second, ExponentialBackoff(9, p), "cap holds")
}

func TestExponentialBackoff_JitterStaysWithinBounds(t *testing.T) {
	p := Policy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		UseJitter:       true,
	}

	for i := 0; i < 100; i++ {
		d := ExponentialBackoff(3, p)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3}, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialInterval: time.Millisecond, Multiplier: 1.0}

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 1.0}
	cause := errors.New("still broken")

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause, "last failure must stay matchable")
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 3}, func(context.Context) error {
		calls++
		return errors.New("should not run")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, InitialInterval: time.Hour, Multiplier: 1.0}
	cause := errors.New("transient")

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, p, func(context.Context) error { return cause })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, cause, "join keeps the operation error visible")
}
