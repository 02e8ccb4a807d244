package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollSucceedsOnThirdAttempt(t *testing.T) {
	policy := Policy{Interval: time.Millisecond, MaxAttempts: 60}

	result, attempts, err := Poll(context.Background(), policy, func(attempt int) (string, bool) {
		if attempt < 3 {
			return "", false
		}
		return "10.0.0.7", true
	})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", result)
	assert.Equal(t, 3, attempts)
}

func TestPollExhaustsAttempts(t *testing.T) {
	policy := Policy{Interval: time.Millisecond, MaxAttempts: 5}
	calls := 0

	result, attempts, err := Poll(context.Background(), policy, func(int) (string, bool) {
		calls++
		return "", false
	})
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Empty(t, result)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, calls)
}

func TestPollCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	calls := 0
	_, _, err := Poll(ctx, Policy{Interval: 20 * time.Millisecond, MaxAttempts: 1000}, func(int) (int, bool) {
		calls++
		return 0, false
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls, 1000)
}

func TestPolicyBudget(t *testing.T) {
	assert.Equal(t, 5*time.Minute, Policy{Interval: 5 * time.Second, MaxAttempts: 60}.Budget())
}

func TestRetryWithContext_Success(t *testing.T) {
	attempts := 0
	err := RetryWithContext(context.Background(), 3, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithContext_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := RetryWithContext(context.Background(), 3, func() error {
		attempts++
		return errors.New("always fails")
	})
	assert.EqualError(t, err, "always fails")
	assert.Equal(t, 3, attempts)
}

func TestRetryWithContext_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := RetryWithContext(ctx, 10, func() error {
		attempts++
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, attempts, 10)
}
