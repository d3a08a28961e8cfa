// Package retry runs an operation against an unreliable dependency with a
// bounded number of attempts and exponential backoff plus additive jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// DefaultMaxJitter bounds the random delay added to every backoff.
const DefaultMaxJitter = 50 * time.Millisecond

var ErrInvalidPlan = errors.New("invalid retry plan")

// Plan is the retry configuration. Attempts is a hard ceiling on the number
// of calls, including the first one.
type Plan struct {
	Attempts  int
	BaseDelay time.Duration
	MaxJitter time.Duration
}

// Validate checks the plan can be executed.
func (p Plan) Validate() error {
	if p.Attempts < 1 {
		return fmt.Errorf("%w: attempts must be >= 1, got %d", ErrInvalidPlan, p.Attempts)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive, got %s", ErrInvalidPlan, p.BaseDelay)
	}
	if p.MaxJitter < 0 {
		return fmt.Errorf("%w: max jitter must not be negative, got %s", ErrInvalidPlan, p.MaxJitter)
	}
	return nil
}

// Backoff returns the delay before the attempt following attempt i
// (0-indexed), without jitter: BaseDelay * 2^i, saturating at the largest
// representable duration.
func (p Plan) Backoff(i int) time.Duration {
	if i < 0 {
		i = 0
	}
	if i >= 63 || p.BaseDelay > math.MaxInt64>>uint(i) {
		return math.MaxInt64
	}
	return p.BaseDelay << uint(i)
}

// Option customizes a single Do call.
type Option func(*options)

type options struct {
	attemptTimeout time.Duration
	jitter         func() time.Duration
	onRetry        func(attempt int, delay time.Duration, err error)
}

// WithAttemptTimeout bounds every individual call with its own deadline.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *options) {
		o.attemptTimeout = d
	}
}

// WithJitter replaces the jitter source. The returned value is added to the
// exponential backoff as is.
func WithJitter(fn func() time.Duration) Option {
	return func(o *options) {
		if fn != nil {
			o.jitter = fn
		}
	}
}

// WithOnRetry registers a hook called after a failed attempt, right before
// sleeping. attempt is 0-indexed.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

// UniformJitter returns a jitter source drawing uniformly from [0, max).
func UniformJitter(max time.Duration) func() time.Duration {
	return func() time.Duration {
		if max <= 0 {
			return 0
		}
		return rand.N(max)
	}
}

// Do calls fn until it succeeds or plan.Attempts calls have failed. Every
// failure is retried the same way. It returns the first successful result,
// the last error after exhaustion, or the context error when ctx ends first.
// There is no sleep after the final attempt.
func Do[T any](
	ctx context.Context,
	plan Plan,
	fn func(ctx context.Context, attempt int) (T, error),
	opts ...Option,
) (T, error) {
	var zero T
	if err := plan.Validate(); err != nil {
		return zero, err
	}

	o := options{jitter: UniformJitter(plan.MaxJitter)}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		result  T
		attempt int
		lastErr error
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		// attempt has already been advanced past the call that just failed
		failed := attempt - 1
		if attempt >= plan.Attempts {
			return 0, true
		}
		delay := plan.Backoff(failed)
		if j := o.jitter(); j > 0 && delay <= math.MaxInt64-j {
			delay += j
		}
		if o.onRetry != nil {
			o.onRetry(failed, delay, lastErr)
		}
		return delay, false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if o.attemptTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
			defer cancel()
		}

		current := attempt
		attempt++

		v, err := fn(callCtx, current)
		if err != nil {
			lastErr = err
			return goretry.RetryableError(err)
		}
		result = v
		return nil
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}
