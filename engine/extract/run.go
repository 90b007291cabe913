package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-advisor/pkg/fn"
	"github.com/WessleyAI/wessley-advisor/pkg/llm"
	"github.com/WessleyAI/wessley-advisor/pkg/metrics"
)

const (
	DefaultMaxAttempts    = 5
	MaxAttemptsLimit      = 10
	DefaultAttemptTimeout = 45 * time.Second
)

// Options configures Run.
type Options struct {
	// Mode labels metrics and logs, e.g. "propose" or "enrich".
	Mode string
	// MaxAttempts is clamped to [1, MaxAttemptsLimit]; zero means
	// DefaultMaxAttempts.
	MaxAttempts int
	// AttemptTimeout bounds each generator call. A timeout is a failed attempt.
	AttemptTimeout time.Duration
	// Backoff is the wait before the second attempt; it doubles afterwards.
	Backoff time.Duration
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	switch {
	case o.MaxAttempts == 0:
		o.MaxAttempts = DefaultMaxAttempts
	case o.MaxAttempts < 1:
		o.MaxAttempts = 1
	case o.MaxAttempts > MaxAttemptsLimit:
		o.MaxAttempts = MaxAttemptsLimit
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.Mode == "" {
		o.Mode = "default"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Decoder converts a parsed payload into the caller's shape. Returning an
// error fails the attempt.
type Decoder[T any] func(Payload) (T, error)

// Outcome is the result of Run. When Exhausted is true, Value came from the
// fallback and LastErr describes the final failed attempt.
type Outcome[T any] struct {
	Value     T
	Attempts  int
	Exhausted bool
	LastErr   error
}

// attemptError classifies a failed attempt for metrics.
type attemptError struct {
	outcome string
	err     error
}

func (e *attemptError) Error() string { return e.outcome + ": " + e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

var tightening = []string{
	"Respond with JSON only. Do not include any prose or explanations.",
	"Your previous answer could not be parsed. Output a single valid JSON value and nothing else: no markdown, no code fences, no comments.",
	"STRICT MODE: the first character of your answer must be '{' or '[' and the last must be '}' or ']'. Any other text makes the answer invalid.",
}

// Tighten returns prompt with the instruction suffix for attempt (1-based).
// The first attempt is sent unchanged.
func Tighten(prompt string, attempt int) string {
	if attempt <= 1 {
		return prompt
	}
	i := attempt - 2
	if i >= len(tightening) {
		i = len(tightening) - 1
	}
	return strings.TrimRight(prompt, "\n") + "\n\n" + tightening[i]
}

// Run asks gen for a structured answer and decodes it, retrying sequentially
// with a tightened prompt. It never returns an error: on exhaustion, or when
// ctx ends, the value is fallback() and Exhausted is set.
func Run[T any](ctx context.Context, gen llm.Generator, req llm.Request, opts Options, decode Decoder[T], fallback func() T) Outcome[T] {
	opts = opts.withDefaults()
	req.JSON = true
	base := req.Prompt
	attempts := 0

	retry := fn.RetryOpts{
		MaxAttempts: opts.MaxAttempts,
		InitialWait: opts.Backoff,
		MaxWait:     10 * opts.Backoff,
		OnRetry: func(attempt int, err error) {
			opts.Logger.Warn("structured extraction attempt failed",
				"mode", opts.Mode, "attempt", attempt, "max", opts.MaxAttempts, "err", err)
		},
	}

	res := fn.Retry(ctx, retry, func(ctx context.Context, attempt int) fn.Result[T] {
		attempts = attempt
		v, err := attemptOnce(ctx, gen, req, base, attempt, opts, decode)
		outcome := "ok"
		var ae *attemptError
		if errors.As(err, &ae) {
			outcome = ae.outcome
		}
		metrics.GeneratorAttempts.WithLabelValues(opts.Mode, outcome).Inc()
		if err != nil {
			return fn.Err[T](err)
		}
		return fn.Ok(v)
	})

	if v, err := res.Unwrap(); err == nil {
		return Outcome[T]{Value: v, Attempts: attempts}
	}
	metrics.GeneratorFallbacks.WithLabelValues(opts.Mode).Inc()
	opts.Logger.Warn("structured extraction exhausted, using fallback",
		"mode", opts.Mode, "attempts", attempts, "err", res.Error())
	return Outcome[T]{Value: fallback(), Attempts: attempts, Exhausted: true, LastErr: res.Error()}
}

func attemptOnce[T any](ctx context.Context, gen llm.Generator, req llm.Request, base string, attempt int, opts Options, decode Decoder[T]) (T, error) {
	var zero T
	actx, cancel := context.WithTimeout(ctx, opts.AttemptTimeout)
	defer cancel()

	req.Prompt = Tighten(base, attempt)
	text, err := gen.Generate(actx, req)
	if err != nil {
		outcome := "transport_error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		return zero, &attemptError{outcome: outcome, err: err}
	}

	cands := Candidates(text)
	if len(cands) == 0 {
		return zero, &attemptError{outcome: "unparseable", err: Parse(text).Err}
	}
	var errs []error
	for _, p := range cands {
		v, err := decode(p)
		if err == nil {
			return v, nil
		}
		errs = append(errs, fmt.Errorf("decode %s payload: %w", p.Kind, err))
	}
	return zero, &attemptError{outcome: "decode_error", err: errors.Join(errs...)}
}
