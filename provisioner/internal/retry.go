package internal

import (
	"context"
	"errors"
	"time"
)

// ErrAttemptsExhausted is returned by Poll when no attempt succeeded.
var ErrAttemptsExhausted = errors.New("attempts exhausted")

// Policy is a fixed-interval polling policy.
// Interval × MaxAttempts is the total budget of a Poll call.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

func (p Policy) Budget() time.Duration {
	return p.Interval * time.Duration(p.MaxAttempts)
}

// Poll calls fn until it reports done or MaxAttempts calls were made, waiting
// Interval between attempts. It returns the value of the successful attempt and
// the number of attempts made.
// Returns ErrAttemptsExhausted when the budget is spent, or ctx.Err() if the
// context is cancelled while waiting.
func Poll[T any](ctx context.Context, policy Policy, fn func(attempt int) (T, bool)) (T, int, error) {
	var zero T
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if result, done := fn(attempt); done {
			return result, attempt, nil
		}
		if attempt < policy.MaxAttempts {
			select {
			case <-time.After(policy.Interval):
			case <-ctx.Done():
				return zero, attempt, ctx.Err()
			}
		}
	}
	return zero, policy.MaxAttempts, ErrAttemptsExhausted
}

// RetryWithContext calls fn up to maxAttempts times with exponential backoff
// (100ms, 200ms, 400ms, 800ms, ...). Returns the last error if all attempts fail,
// or ctx.Err() if the context is cancelled before all attempts are exhausted.
func RetryWithContext(ctx context.Context, maxAttempts int, fn func() error) error {
	var err error
	for i := 0; i < maxAttempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < maxAttempts-1 {
			select {
			case <-time.After(time.Duration(100*(1<<i)) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}
