// Package poll provides a poll-until-condition helper with a bounded budget.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBudgetExhausted is returned when MaxAttempts passes without the condition
// reporting done. Callers wrap it into their own terminal error.
var ErrBudgetExhausted = errors.New("poll budget exhausted")

// Config bounds a polling loop.
//   - Interval: wait between attempts.
//   - MaxAttempts: hard attempt budget; 0 means poll until the context ends.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Condition inspects the remote state once. It returns the current value,
// whether that value is terminal, and any hard error that should stop polling.
type Condition[T any] func(ctx context.Context) (T, bool, error)

// Until runs fn at the configured interval until it reports done, fails, the
// attempt budget is exhausted, or the context is canceled. The first attempt
// runs immediately.
func Until[T any](ctx context.Context, cfg Config, fn Condition[T]) (T, error) {
	var zero T
	if cfg.Interval <= 0 {
		return zero, fmt.Errorf("poll interval must be positive, got %s", cfg.Interval)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		val, done, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return val, nil
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return zero, ErrBudgetExhausted
		}
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("polling interrupted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
