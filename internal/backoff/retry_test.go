package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffPolicy(t *testing.T) {
	t.Parallel()

	t.Run("GrowsByFactor", func(t *testing.T) {
		t.Parallel()
		policy := &ExponentialBackoffPolicy{
			InitialInterval: 100 * time.Millisecond,
			BackoffFactor:   2.0,
			MaxInterval:     time.Minute,
			MaxRetries:      10,
		}

		var intervals []time.Duration
		for i := 0; i < 4; i++ {
			interval, err := policy.ComputeNextInterval(i, 0, nil)
			require.NoError(t, err)
			intervals = append(intervals, interval)
		}
		assert.Equal(t, []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			800 * time.Millisecond,
		}, intervals)
	})

	t.Run("CapsAtMaxInterval", func(t *testing.T) {
		t.Parallel()
		policy := &ExponentialBackoffPolicy{
			InitialInterval: time.Second,
			BackoffFactor:   10.0,
			MaxInterval:     3 * time.Second,
			MaxRetries:      10,
		}
		interval, err := policy.ComputeNextInterval(5, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, interval)
	})

	t.Run("ExhaustsAfterMaxRetries", func(t *testing.T) {
		t.Parallel()
		policy := &ExponentialBackoffPolicy{
			InitialInterval: time.Millisecond,
			BackoffFactor:   2.0,
			MaxInterval:     time.Second,
			MaxRetries:      3,
		}
		_, err := policy.ComputeNextInterval(3, 0, nil)
		assert.ErrorIs(t, err, ErrRetriesExhausted)
	})
}

func TestConstantBackoffPolicy(t *testing.T) {
	t.Parallel()

	policy := &ConstantBackoffPolicy{Interval: 50 * time.Millisecond, MaxRetries: 2}

	interval, err := policy.ComputeNextInterval(0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, interval)

	interval, err = policy.ComputeNextInterval(1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, interval)

	_, err = policy.ComputeNextInterval(2, 0, nil)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestRetry(t *testing.T) {
	t.Parallel()

	retryable := errors.New("transient")
	permanent := errors.New("permanent")
	isRetriable := func(err error) bool { return errors.Is(err, retryable) }

	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		t.Parallel()
		var calls int
		err := Retry(context.Background(), func(_ context.Context) error {
			calls++
			if calls < 3 {
				return retryable
			}
			return nil
		}, &ConstantBackoffPolicy{Interval: time.Millisecond, MaxRetries: 5}, isRetriable)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("StopsOnNonRetryable", func(t *testing.T) {
		t.Parallel()
		var calls int
		err := Retry(context.Background(), func(_ context.Context) error {
			calls++
			return permanent
		}, &ConstantBackoffPolicy{Interval: time.Millisecond, MaxRetries: 5}, isRetriable)
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("ReturnsLastErrorWhenExhausted", func(t *testing.T) {
		t.Parallel()
		var calls int
		err := Retry(context.Background(), func(_ context.Context) error {
			calls++
			return retryable
		}, &ConstantBackoffPolicy{Interval: time.Millisecond, MaxRetries: 2}, isRetriable)
		assert.ErrorIs(t, err, retryable)
		assert.Equal(t, 3, calls)
	})

	t.Run("HonorsContextCancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Retry(ctx, func(_ context.Context) error {
			return retryable
		}, &ConstantBackoffPolicy{Interval: time.Hour, MaxRetries: 5}, isRetriable)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFullJitter(t *testing.T) {
	t.Parallel()
	for i := 0; i < 100; i++ {
		jittered := FullJitter(time.Second)
		assert.GreaterOrEqual(t, jittered, time.Duration(0))
		assert.LessOrEqual(t, jittered, time.Second)
	}
}
