// Package resilience implements the uniform adapter-call contract every
// external-service adapter in internal/adapters composes instead of
// duplicating: deadline handling, retry with exponential backoff,
// rate-limit honoring, and a circuit breaker per adapter instance.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// Cost is a currency-neutral accounting unit a chargeable adapter call
// reports back to the orchestrator's cost-ceiling counter.
type Cost float64

// Ceiling is the orchestrator's per-run cost-admission gate: it atomically
// increments a running total before a chargeable call is attempted and
// refuses the increment (leaving the total unchanged) when it would put
// the run over its ceiling. The running total is kept as an int64 scaled
// to hundredths of a unit so the admission check is a single CAS loop
// with no floating-point race.
type Ceiling struct {
	limit int64
	spent int64
}

// NewCeiling builds a Ceiling for the given per-run limit. A zero or
// negative limit disables enforcement entirely (Reserve always succeeds) —
// useful for dry runs or tests that don't care about budget.
func NewCeiling(limit Cost) *Ceiling {
	return &Ceiling{limit: toHundredths(limit)}
}

func toHundredths(c Cost) int64 {
	return int64(c*100 + 0.5)
}

// Reserve attempts to admit a charge of amount against the ceiling for the
// given stage. On success the running total is updated; on refusal the
// total is left untouched and the caller should treat this as
// ErrKindBudgetExhausted without ever making the underlying call.
func (c *Ceiling) Reserve(stage model.Stage, amount Cost) error {
	if c == nil || c.limit <= 0 {
		return nil
	}
	delta := toHundredths(amount)
	for {
		cur := atomic.LoadInt64(&c.spent)
		next := cur + delta
		if next > c.limit {
			return model.NewStageError(stage, model.ErrKindBudgetExhausted,
				"cost ceiling exceeded: spending %s would bring the run to %s of a %s limit",
				fmt.Sprintf("%.2f", float64(delta)/100),
				fmt.Sprintf("%.2f", float64(next)/100),
				fmt.Sprintf("%.2f", float64(c.limit)/100))
		}
		if atomic.CompareAndSwapInt64(&c.spent, cur, next) {
			return nil
		}
	}
}

// Spent reports the running total admitted so far.
func (c *Ceiling) Spent() Cost {
	if c == nil {
		return 0
	}
	return Cost(atomic.LoadInt64(&c.spent)) / 100
}

// Retryable marks an error transient: transport and rate-limit failures
// are retried by Call; every other ErrorKind is not.
type Retryable interface {
	error
	RetryAfter() (time.Duration, bool)
}

// rateLimitedError wraps a *model.StageError carrying rate_limited together
// with an optional server-advertised retry-after delay.
type rateLimitedError struct {
	*model.StageError
	after time.Duration
	has   bool
}

func (e *rateLimitedError) RetryAfter() (time.Duration, bool) { return e.after, e.has }
func (e *rateLimitedError) Unwrap() error                     { return e.StageError }

// NewRateLimited builds a retryable rate_limited StageError with an
// optional Retry-After hint.
func NewRateLimited(stage model.Stage, message string, retryAfter time.Duration) error {
	return &rateLimitedError{
		StageError: model.NewStageError(stage, model.ErrKindRateLimited, "%s", message),
		after:      retryAfter,
		has:        retryAfter > 0,
	}
}

// Breaker is a single adapter instance's circuit breaker. Adapters
// construct one at startup and reuse it across calls.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker builds a circuit breaker named for the adapter it guards,
// tripping after consecutive failures and resetting after a cooldown.
func NewBreaker(name string, maxConsecutiveFailures uint32, cooldown time.Duration) *Breaker {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxConsecutiveFailures
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Policy configures one Call invocation.
type Policy struct {
	MaxAttempts  uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultPolicy is a conservative retry policy suitable for adapters that
// don't need a tighter one.
var DefaultPolicy = Policy{MaxAttempts: 4, InitialDelay: 250 * time.Millisecond, MaxDelay: 10 * time.Second}

// Call runs op under the given breaker and retry policy, retrying
// transport and rate_limited StageErrors with exponential backoff
// (honoring a RetryAfter hint when present) and letting every other
// failure kind through immediately. ctx cancellation or deadline surfaces
// as ErrKindCancelled/ErrKindTimeout rather than exhausting retries.
func Call[T any](ctx context.Context, br *Breaker, stage model.Stage, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialDelay
	bo.MaxInterval = policy.MaxDelay
	bounded := backoff.WithMaxRetries(bo, policy.MaxAttempts-1)
	withCtx := backoff.WithContext(bounded, ctx)

	var result T
	var lastErr error

	attempt := func() error {
		raw, err := br.cb.Execute(func() (interface{}, error) {
			return op(ctx)
		})
		if err != nil {
			lastErr = err
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return model.NewStageError(stage, model.ErrKindTransport, "circuit open: %v", err)
			}
			return classify(stage, err)
		}
		result = raw.(T)
		return nil
	}

	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(translateCtxErr(stage, ctx.Err()))
		}
		err := attempt()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		if rl, ok := err.(*rateLimitedError); ok {
			if d, has := rl.RetryAfter(); has {
				time.Sleep(d)
			}
		}
		return err
	}, withCtx)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, translateCtxErr(stage, err)
		}
		if se, ok := model.AsStageError(err); ok {
			return zero, se
		}
		if se, ok := model.AsStageError(lastErr); ok {
			return zero, se
		}
		return zero, model.NewStageError(stage, model.ErrKindTransport, "%v", err)
	}

	return result, nil
}

func classify(stage model.Stage, err error) error {
	if _, ok := model.AsStageError(err); ok {
		return err
	}
	return model.NewStageError(stage, model.ErrKindTransport, "%v", err)
}

func isRetryable(err error) bool {
	se, ok := model.AsStageError(err)
	if !ok {
		return false
	}
	return se.Kind == model.ErrKindTransport || se.Kind == model.ErrKindRateLimited
}

func translateCtxErr(stage model.Stage, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewStageError(stage, model.ErrKindTimeout, "deadline exceeded")
	}
	return model.NewStageError(stage, model.ErrKindCancelled, "context cancelled")
}
