package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSleep captures requested delays without waiting.
func recordSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestBackoffWithoutJitterDoublesUpToMax(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 10 * time.Second, Jitter: NoJitter}

	got := []time.Duration{p.Backoff(1), p.Backoff(2), p.Backoff(3), p.Backoff(4), p.Backoff(5), p.Backoff(9)}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	assert.Equal(t, want, got)
}

func TestBackoffFullJitterStaysInBounds(t *testing.T) {
	p := DefaultPolicy()
	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 50; i++ {
			d := p.Backoff(attempt)
			assert.GreaterOrEqual(t, d, p.BaseDelay)
			assert.LessOrEqual(t, d, p.MaxDelay)
		}
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var waits []time.Duration
	p := Policy{MaxAttempts: 6, BaseDelay: time.Second, MaxDelay: time.Minute, Jitter: NoJitter, Sleep: recordSleep(&waits)}

	calls := 0
	res := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("rate limited")
		}
		return "ok", nil
	})

	require.True(t, res.OK())
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, 3, res.Attempts)
	assert.NoError(t, res.Error())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	var waits []time.Duration
	p := DefaultPolicy()
	p.Sleep = recordSleep(&waits)

	calls := 0
	boom := errors.New("server unavailable")
	var retried []int
	res := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, boom
	}, func(attempt int, err error, _ time.Duration) {
		retried = append(retried, attempt)
	})

	assert.Equal(t, 6, calls)
	assert.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, 6, res.Attempts)
	assert.Len(t, waits, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, retried)
	assert.ErrorIs(t, res.Error(), ErrExhausted)
	assert.ErrorIs(t, res.Error(), boom)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	p := DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error {
		t.Fatal("must not sleep before a permanent error")
		return nil
	}
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	res := Do(context.Background(), p, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, permanent
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, Aborted, res.Outcome)
	assert.ErrorIs(t, res.Error(), permanent)
	assert.NotErrorIs(t, res.Error(), ErrExhausted)
}

func TestDoAbortsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 6, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	res := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("timeout")
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, Aborted, res.Outcome)
	assert.ErrorIs(t, res.Error(), context.Canceled)
}

func TestZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	res := Do(context.Background(), Policy{}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, Exhausted, res.Outcome)
}
