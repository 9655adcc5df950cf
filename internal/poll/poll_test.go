package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUntil_FirstAttemptImmediate(t *testing.T) {
	t.Parallel()

	start := time.Now()
	got, err := Until(context.Background(), Config{Interval: time.Hour, MaxAttempts: 1},
		func(context.Context) (int, bool, error) {
			return 42, true, nil
		})
	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.Less(t, time.Since(start), time.Second)
}

func TestUntil_BudgetExhausted(t *testing.T) {
	t.Parallel()

	attempts := 0
	_, err := Until(context.Background(), Config{Interval: time.Millisecond, MaxAttempts: 3},
		func(context.Context) (struct{}, bool, error) {
			attempts++
			return struct{}{}, false, nil
		})
	require.ErrorIs(t, err, ErrBudgetExhausted)
	require.Equal(t, 3, attempts)
}

func TestUntil_SucceedsMidBudget(t *testing.T) {
	t.Parallel()

	attempts := 0
	got, err := Until(context.Background(), Config{Interval: time.Millisecond, MaxAttempts: 10},
		func(context.Context) (string, bool, error) {
			attempts++
			return "ready", attempts == 4, nil
		})
	require.NoError(t, err)
	require.Equal(t, "ready", got)
	require.Equal(t, 4, attempts)
}

func TestUntil_HardErrorStopsPolling(t *testing.T) {
	t.Parallel()

	boom := errors.New("transport down")
	attempts := 0
	_, err := Until(context.Background(), Config{Interval: time.Millisecond, MaxAttempts: 10},
		func(context.Context) (struct{}, bool, error) {
			attempts++
			return struct{}{}, false, boom
		})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, attempts)
}

func TestUntil_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Until(ctx, Config{Interval: time.Hour},
		func(context.Context) (struct{}, bool, error) {
			return struct{}{}, false, nil
		})
	require.ErrorIs(t, err, context.Canceled)
}

func TestUntil_RejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()

	_, err := Until(context.Background(), Config{Interval: 0},
		func(context.Context) (struct{}, bool, error) {
			return struct{}{}, true, nil
		})
	require.Error(t, err)
}
