package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/jzx17/reframe/pkg/types"
)

// Executor runs functions under a retry Policy
type Executor struct {
	policy Policy
	clock  quartz.Clock
	logger zerolog.Logger

	stats Stats
	mu    sync.Mutex
}

// ExecuteFunc is the function type to retry
type ExecuteFunc[T any] func(ctx context.Context) (T, error)

// Stats contains retry statistics
type Stats struct {
	TotalAttempts   int64         // total attempt count
	TotalRetries    int64         // total retry count
	TotalSuccesses  int64         // total success count
	TotalFailures   int64         // total failure count
	TotalRetryDelay time.Duration // total time spent waiting between attempts
}

// ExecutorOption is a configuration option for the executor
type ExecutorOption func(*Executor)

// WithClock sets the clock used for delays
func WithClock(clock quartz.Clock) ExecutorOption {
	return func(e *Executor) {
		e.clock = clock
	}
}

// WithLogger sets the logger for retry events
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates a retry executor
func NewExecutor(policy Policy, opts ...ExecutorOption) *Executor {
	e := &Executor{
		policy: policy,
		clock:  quartz.NewReal(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs fn until it succeeds, the policy gives up or ctx is done
func Execute[T any](e *Executor, ctx context.Context, fn ExecuteFunc[T]) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		e.update(func(s *Stats) { s.TotalAttempts++ })

		result, err := fn(ctx)
		if err == nil {
			e.update(func(s *Stats) { s.TotalSuccesses++ })
			if attempt > 1 {
				e.logger.Info().Int("attempt", attempt).Msg("retry succeeded")
			}
			return result, nil
		}

		if !e.policy.ShouldRetry(err, attempt) {
			e.update(func(s *Stats) { s.TotalFailures++ })
			return zero, e.wrapError(err, attempt)
		}

		delay := e.policy.NextDelay(attempt)
		e.update(func(s *Stats) {
			s.TotalRetries++
			s.TotalRetryDelay += delay
		})
		e.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying after dispatch failure")

		if delay > 0 {
			timer := e.clock.NewTimer(delay, "retry", "delay")
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// Analyzer is the subset of the dispatcher used by Analyze
type Analyzer interface {
	Analyze(ctx context.Context, path, content, env string, minify bool) (string, error)
}

// Analyze calls a.Analyze under the executor's policy
func Analyze(e *Executor, ctx context.Context, a Analyzer, path, content, env string, minify bool) (string, error) {
	return Execute(e, ctx, func(ctx context.Context) (string, error) {
		return a.Analyze(ctx, path, content, env, minify)
	})
}

// Stats gets retry statistics
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Executor) update(fn func(*Stats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.stats)
}

// wrapError annotates the final error with retry information
func (e *Executor) wrapError(err error, attempts int) error {
	var de *types.DispatchError
	if errors.As(err, &de) {
		de.WithContext("retry_attempts", attempts)
		de.WithContext("max_attempts", e.policy.MaxAttempts())
		return err
	}
	if attempts == 1 {
		return err
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
