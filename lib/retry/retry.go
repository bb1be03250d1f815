// Package retry wraps fallible operations with bounded
// exponential-backoff retries.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Classifier decides whether an error is transient and worth retrying.
type Classifier func(err error) bool

type Options struct {
	// MaxAttempts is the total attempt budget, values below 1 are
	// treated as 1.
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps the backoff, 0 means uncapped.
	MaxDelay time.Duration
	// Retryable classifies failures, nil retries everything.
	Retryable Classifier
}

// delay for the wait after the given 1-indexed attempt, jitter excluded.
func (o Options) delay(attempt int) time.Duration {
	d := o.BaseDelay << uint(attempt-1)
	if d < o.BaseDelay {
		// shift overflowed
		d = o.MaxDelay
	}
	if o.MaxDelay > 0 && d > o.MaxDelay {
		d = o.MaxDelay
	}
	return d
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)/4 + 1))
}

// ExhaustedError is returned once every attempt has failed with a
// transient error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %s", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do invokes op until it succeeds, fails permanently or runs out of
// attempts. Permanent failures are returned unchanged after a single
// attempt, exhaustion is reported as *ExhaustedError wrapping the last
// failure. The backoff sleep is the only blocking behavior and respects
// ctx cancellation.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if opts.Retryable != nil && !opts.Retryable(err) {
			return zero, err
		}
		if attempt >= opts.MaxAttempts {
			return zero, &ExhaustedError{Attempts: attempt, Last: err}
		}

		wait := opts.delay(attempt)
		wait += jitter(wait)
		slog.WarnContext(
			ctx, "transient failure, backing off",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"wait", wait,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
}
