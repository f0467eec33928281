// Package retry runs an operation under an explicit backoff policy and
// reports the result as a tagged Outcome instead of a bare error.
package retry

import (
	"context"
	"errors"
	"time"

	"acrscan/internal/config"
	"acrscan/internal/services"
)

// Policy bounds the attempts and backoff schedule of one operation.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(context.Context, time.Duration) error
}

// DefaultPolicy returns three attempts with doubling backoff from 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
	}
}

// FromConfig builds a policy from the [retry] section.
func FromConfig(cfg config.Retry) Policy {
	return Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: time.Duration(cfg.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.MaxBackoffMs) * time.Millisecond,
		Multiplier:     cfg.Multiplier,
	}
}

// Kind tags how an operation ended.
type Kind int

const (
	Succeeded Kind = iota
	// TransientFailure means every attempt failed with a retryable error.
	TransientFailure
	// FatalFailure means an attempt failed with an error that retrying cannot fix.
	FatalFailure
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case TransientFailure:
		return "transient_failure"
	default:
		return "fatal_failure"
	}
}

// Outcome is the tagged result of Run.
type Outcome[T any] struct {
	Kind     Kind
	Value    T
	Attempts int
	Err      error
}

// OK reports whether the operation succeeded.
func (o Outcome[T]) OK() bool {
	return o.Kind == Succeeded
}

// Unwrap returns the value and error in the usual Go shape.
func (o Outcome[T]) Unwrap() (T, error) {
	return o.Value, o.Err
}

// RetryAfter is implemented by errors that carry a server supplied delay.
type RetryAfter interface {
	RetryAfter() time.Duration
}

// Run calls op until it succeeds, fails with an error not marked
// services.ErrTransient, or exhausts the policy. Context cancellation ends the
// run as a fatal failure.
func Run[T any](ctx context.Context, policy Policy, op func(ctx context.Context, attempt int) (T, error)) Outcome[T] {
	attempts := max(policy.MaxAttempts, 1)
	var zero T
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome[T]{Kind: FatalFailure, Value: zero, Attempts: attempt - 1, Err: err}
		}
		value, err := op(ctx, attempt)
		if err == nil {
			return Outcome[T]{Kind: Succeeded, Value: value, Attempts: attempt}
		}
		lastErr = err
		if !services.Retryable(err) || errors.Is(err, context.Canceled) {
			return Outcome[T]{Kind: FatalFailure, Value: zero, Attempts: attempt, Err: err}
		}
		if attempt == attempts {
			break
		}
		if err := policy.sleep(ctx, policy.Delay(attempt, err)); err != nil {
			return Outcome[T]{Kind: FatalFailure, Value: zero, Attempts: attempt, Err: err}
		}
	}
	return Outcome[T]{Kind: TransientFailure, Value: zero, Attempts: attempts, Err: lastErr}
}

// Delay returns the wait after the given failed attempt (1-based). A delay
// carried by err takes precedence and is capped like computed delays.
func (p Policy) Delay(attempt int, err error) time.Duration {
	var hinted RetryAfter
	if errors.As(err, &hinted) && hinted.RetryAfter() > 0 {
		return p.cap(hinted.RetryAfter())
	}
	delay := p.InitialBackoff
	if delay <= 0 {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if p.MaxBackoff > 0 && delay >= p.MaxBackoff {
			break
		}
	}
	return p.cap(delay)
}

func (p Policy) cap(delay time.Duration) time.Duration {
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
