// Package schedule drives a repeated step (e.g. polling a run) on a fixed
// interval with optional attempt and time budgets.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const DefaultInterval = 2 * time.Second

// ErrBudgetExhausted is returned when the step never reported done within
// MaxAttempts or MaxElapsed.
var ErrBudgetExhausted = errors.New("schedule: budget exhausted")

// errPending tells backoff.Retry the step wants another attempt.
var errPending = errors.New("pending")

// Step is called once per attempt, starting at 1.
type Step func(ctx context.Context, attempt int) (done bool, err error)

type Schedule struct {
	// Interval between attempts. Zero means DefaultInterval.
	Interval time.Duration
	// MaxAttempts caps the number of calls to the step. Zero is unbounded.
	MaxAttempts int
	// MaxElapsed caps the total wall time. Zero is unbounded.
	MaxElapsed time.Duration
	// BackOff overrides the constant Interval policy when set.
	BackOff backoff.BackOff
}

func (s Schedule) backOff() backoff.BackOff {
	if s.BackOff != nil {
		return s.BackOff
	}
	iv := s.Interval
	if iv <= 0 {
		iv = DefaultInterval
	}
	return backoff.NewConstantBackOff(iv)
}

// Until calls step immediately and then once per interval until it reports
// done. An error from step stops the loop and is returned as is. A cancelled
// ctx returns its cause.
func (s Schedule) Until(ctx context.Context, step Step) error {
	if err := context.Cause(ctx); err != nil {
		return err
	}

	attempt := 0
	op := func() (struct{}, error) {
		if err := context.Cause(ctx); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		attempt++
		done, err := step(ctx, attempt)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if done {
			return struct{}{}, nil
		}
		return struct{}{}, errPending
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(s.backOff()),
		// backoff defaults to 15m; zero disables the limit.
		backoff.WithMaxElapsedTime(s.MaxElapsed),
	}
	if s.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(s.MaxAttempts)))
	}

	_, err := backoff.Retry(ctx, op, opts...)
	// Retry only unwraps permanent errors when it has tries left.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if errors.Is(err, errPending) {
		if cerr := context.Cause(ctx); cerr != nil {
			return cerr
		}
		return fmt.Errorf("%w after %d attempt(s)", ErrBudgetExhausted, attempt)
	}
	return err
}
