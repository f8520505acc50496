// Package request runs a fallible operation with fixed-interval retries
// and optional polling, keeping the latest data, error and loading state.
package request

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/chinmay1088/meridian/config"
	"github.com/chinmay1088/meridian/logger"
)

// ErrSkipped is returned by Run when the Before gate refuses to run.
var ErrSkipped = errors.New("request skipped")

type Options[T any] struct {
	// RetryCount is the number of retries after the first failed attempt.
	RetryCount      int
	RetryInterval   time.Duration
	PollingInterval time.Duration

	Before    func() bool
	OnSuccess func(T)
	OnError   func(error)

	Log zerolog.Logger
}

// OptionsFromConfig copies the retry and polling settings.
func OptionsFromConfig[T any](cfg config.Request) Options[T] {
	return Options[T]{
		RetryCount:      cfg.RetryCount,
		RetryInterval:   cfg.RetryInterval,
		PollingInterval: cfg.PollingInterval,
		Log:             logger.Nop(),
	}
}

type Runner[T any] struct {
	op   func(ctx context.Context) (T, error)
	opts Options[T]

	mu      sync.RWMutex
	data    T
	err     error
	loading bool
}

func New[T any](op func(ctx context.Context) (T, error), opts Options[T]) *Runner[T] {
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	return &Runner[T]{op: op, opts: opts}
}

// Run executes the operation, retrying up to RetryCount times.
func (r *Runner[T]) Run(ctx context.Context) (T, error) {
	var zero T
	if r.opts.Before != nil && !r.opts.Before() {
		return zero, ErrSkipped
	}

	r.setLoading(true)
	defer r.setLoading(false)

	attempt := func() (T, error) {
		res, err := r.op(ctx)
		if err != nil {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			if r.opts.OnError != nil {
				r.opts.OnError(err)
			}
			return zero, err
		}
		return res, nil
	}

	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.opts.RetryInterval)),
		backoff.WithMaxTries(uint(r.opts.RetryCount+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.opts.Log.Debug().Err(err).Dur("retry_in", next).Msg("request failed, retrying")
		}),
	)
	if err != nil {
		return zero, err
	}

	r.mu.Lock()
	r.data = res
	r.err = nil
	r.mu.Unlock()
	if r.opts.OnSuccess != nil {
		r.opts.OnSuccess(res)
	}
	return res, nil
}

// Poll runs immediately and then every PollingInterval until ctx is done.
// Failed runs do not stop polling. Without an interval it runs once.
func (r *Runner[T]) Poll(ctx context.Context) error {
	_, _ = r.Run(ctx)
	if r.opts.PollingInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(r.opts.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = r.Run(ctx)
		}
	}
}

func (r *Runner[T]) setLoading(v bool) {
	r.mu.Lock()
	r.loading = v
	r.mu.Unlock()
}

func (r *Runner[T]) Data() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Err is the error of the most recent failed attempt, cleared on success.
func (r *Runner[T]) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *Runner[T]) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}
