// Package retry provides opt-in, caller-side retry of dispatch failures.
//
// The dispatcher never retries on its own. Callers that want to ride out
// transient dispatch failures (a crashed pool worker, a closed backend
// being replaced) wrap their calls in an Executor. Analysis and
// serialization failures are deterministic and are not retried by the
// default condition.
package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/jzx17/reframe/pkg/types"
)

// Policy defines the retry strategy interface
type Policy interface {
	// ShouldRetry determines whether to retry after the given attempt failed
	ShouldRetry(err error, attempt int) bool

	// NextDelay returns the delay before the next attempt
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the maximum number of attempts
	MaxAttempts() int
}

// Condition is a function that determines retry conditions
type Condition func(error) bool

// DefaultCondition retries dispatch failures only
func DefaultCondition(err error) bool {
	return err != nil && types.IsRetryable(err)
}

// basePolicy provides common retry functionality
type basePolicy struct {
	maxAttempts  int
	condition    Condition
	jitter       bool
	jitterFactor float64
}

func newBasePolicy(maxAttempts int, opts ...PolicyOption) basePolicy {
	p := basePolicy{
		maxAttempts:  maxAttempts,
		condition:    DefaultCondition,
		jitterFactor: 0.1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// ShouldRetry determines whether to retry
func (p *basePolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	return p.condition(err)
}

// MaxAttempts returns the maximum retry attempts
func (p *basePolicy) MaxAttempts() int {
	return p.maxAttempts
}

// applyJitter applies jitter to delay
func (p *basePolicy) applyJitter(delay time.Duration) time.Duration {
	if !p.jitter {
		return delay
	}

	jitterRange := float64(delay) * p.jitterFactor
	jitterAmount := (rand.Float64() - 0.5) * 2 * jitterRange

	result := delay + time.Duration(jitterAmount)
	if result < 0 {
		result = delay / 2
	}
	return result
}

// PolicyOption is a configuration option for retry policies
type PolicyOption func(*basePolicy)

// WithCondition sets the retry condition
func WithCondition(condition Condition) PolicyOption {
	return func(p *basePolicy) {
		p.condition = condition
	}
}

// WithJitter enables jitter
func WithJitter(factor float64) PolicyOption {
	return func(p *basePolicy) {
		p.jitter = true
		if factor > 0 && factor <= 1.0 {
			p.jitterFactor = factor
		}
	}
}

// FixedDelay waits the same delay between attempts
type FixedDelay struct {
	basePolicy
	delay time.Duration
}

// NewFixedDelay creates a fixed delay retry policy
func NewFixedDelay(maxAttempts int, delay time.Duration, opts ...PolicyOption) *FixedDelay {
	return &FixedDelay{
		basePolicy: newBasePolicy(maxAttempts, opts...),
		delay:      delay,
	}
}

// NextDelay returns the delay for the next retry
func (p *FixedDelay) NextDelay(int) time.Duration {
	return p.applyJitter(p.delay)
}

// ExponentialBackoff doubles the delay after every attempt up to a ceiling
type ExponentialBackoff struct {
	basePolicy
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
}

// NewExponentialBackoff creates an exponential backoff retry policy
func NewExponentialBackoff(maxAttempts int, initialDelay, maxDelay time.Duration, opts ...PolicyOption) *ExponentialBackoff {
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &ExponentialBackoff{
		basePolicy:   newBasePolicy(maxAttempts, opts...),
		initialDelay: initialDelay,
		multiplier:   2.0,
		maxDelay:     maxDelay,
	}
}

// NextDelay returns the delay for the next retry
func (p *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := time.Duration(float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt-1)))
	if delay > p.maxDelay || delay < 0 {
		delay = p.maxDelay
	}
	return p.applyJitter(delay)
}
