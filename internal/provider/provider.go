// Package provider wraps AI question generation behind a stable contract:
// topic and difficulty in, structured question out, bounded retry on
// transient failure.
package provider

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/errors"
)

// Provider generates a single trivia question. Implementations may fail
// transiently; the Adapter owns the retry policy.
type Provider interface {
	Generate(ctx context.Context, topic, difficulty string) (domain.Question, error)
}

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = 500 * time.Millisecond
)

// Adapter retries a Provider with exponential backoff and converts exhausted
// budgets into a terminal Unavailable error. The adapter is stateless.
type Adapter struct {
	p               Provider
	maxAttempts     uint64
	initialInterval time.Duration
}

func NewAdapter(p Provider, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		p:               p,
		maxAttempts:     defaultMaxAttempts,
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type AdapterOption func(*Adapter)

func WithMaxAttempts(n int) AdapterOption {
	return func(a *Adapter) {
		if n > 0 {
			a.maxAttempts = uint64(n)
		}
	}
}

func WithInitialInterval(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.initialInterval = d
		}
	}
}

// Fetch generates a question, retrying transient provider failures up to the
// attempt budget. Context cancellation aborts immediately.
func (a *Adapter) Fetch(ctx context.Context, topic, difficulty string) (domain.Question, error) {
	var q domain.Question

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.initialInterval

	op := func() error {
		var err error
		q, err = a.p.Generate(ctx, topic, difficulty)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			slog.WarnContext(ctx, "provider: generate failed, will retry",
				"topic", topic,
				"error", err,
			)
			return err
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, a.maxAttempts-1), ctx))
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return domain.Question{}, err
		}
		return domain.Question{}, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("question provider failed after %d attempts", a.maxAttempts),
			errors.WithCause(err),
		)
	}

	return q, nil
}
