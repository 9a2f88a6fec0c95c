package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrExhausted is wrapped by Result.Error when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

const (
	DefaultMaxAttempts = 6
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 60 * time.Second
)

// Jitter picks the random part of a delay given the span above the base delay.
type Jitter func(span time.Duration) time.Duration

// FullJitter returns a uniform duration in [0, span].
func FullJitter(span time.Duration) time.Duration {
	if span <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(span) + 1))
}

// NoJitter always waits the full exponential ceiling.
func NoJitter(span time.Duration) time.Duration {
	return span
}

// Policy bounds how an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      Jitter
	// Retryable classifies errors; nil treats every error as transient.
	Retryable func(error) bool
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is six attempts with random exponential backoff between 1s and 60s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      FullJitter,
	}
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base < 0 {
		base = 0
	}
	maxDelay := p.MaxDelay
	if maxDelay < base {
		maxDelay = base
	}
	ceiling := base
	for i := 1; i < attempt && ceiling < maxDelay; i++ {
		if ceiling == 0 {
			break
		}
		ceiling *= 2
	}
	if ceiling > maxDelay {
		ceiling = maxDelay
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = NoJitter
	}
	extra := jitter(ceiling - base)
	if extra < 0 {
		extra = 0
	}
	return base + extra
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
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

// Outcome says how a retried operation ended.
type Outcome int

const (
	Succeeded Outcome = iota
	Exhausted
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result carries the value of the last successful attempt or the last error.
type Result[T any] struct {
	Value    T
	Attempts int
	Outcome  Outcome
	Err      error
}

// OK reports whether the operation eventually succeeded.
func (r Result[T]) OK() bool {
	return r.Outcome == Succeeded
}

// Error describes the failure, or returns nil on success.
func (r Result[T]) Error() error {
	switch r.Outcome {
	case Succeeded:
		return nil
	case Exhausted:
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, r.Attempts, r.Err)
	default:
		return r.Err
	}
}

// Do runs op until it succeeds, fails permanently, the context ends or the
// attempt budget is spent. onRetry, when set, is told about each failure that
// will be retried.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), onRetry ...func(attempt int, err error, wait time.Duration)) Result[T] {
	var res Result[T]
	maxAttempts := p.attempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt
		value, err := op(ctx)
		if err == nil {
			res.Value = value
			res.Outcome = Succeeded
			res.Err = nil
			return res
		}
		res.Err = err
		if cerr := ctx.Err(); cerr != nil {
			res.Outcome = Aborted
			res.Err = fmt.Errorf("%w (last error: %v)", cerr, err)
			return res
		}
		if p.Retryable != nil && !p.Retryable(err) {
			res.Outcome = Aborted
			return res
		}
		if attempt == maxAttempts {
			break
		}
		wait := p.Backoff(attempt)
		for _, fn := range onRetry {
			fn(attempt, err, wait)
		}
		if serr := p.sleep(ctx, wait); serr != nil {
			res.Outcome = Aborted
			res.Err = fmt.Errorf("waiting to retry: %w (last error: %v)", serr, err)
			return res
		}
	}
	res.Outcome = Exhausted
	return res
}
