package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// OnRetry runs after a failed attempt and before the next one starts.
	// attempt is the 1-based number of the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// Retry runs f until it succeeds or MaxAttempts is reached, sleeping with
// exponential backoff between attempts. f receives the 1-based attempt number.
// Attempts never overlap.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(ctx context.Context, attempt int) Result[T]) Result[T] {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	var result Result[T]
	wait := opts.InitialWait

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result = f(ctx, attempt)
		if result.IsOk() || attempt == opts.MaxAttempts {
			return result
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, result.err)
		}
		if ctx.Err() != nil {
			return Err[T](ctx.Err())
		}
		if wait <= 0 {
			continue
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 && sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Err[T](ctx.Err())
		case <-timer.C:
		}

		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return result
}
