// Package types defines core interfaces and types shared by the dispatcher and its backends
package types

import (
	"context"
	"strings"
	"time"

	"github.com/jzx17/reframe/pkg/oneshot"
)

// DefaultEnv is the analysis environment used when a caller passes an empty env
const DefaultEnv = "server"

// Analyzer performs source analysis.
//
// Implementations must be safe to call concurrently from independent
// goroutines and must not share mutable state across calls. Both offload
// strategies depend on this.
type Analyzer interface {
	// Analyze analyzes content found at the normalized path
	Analyze(path, content, env string, minify bool) (any, error)
}

// AnalyzerFunc adapts an ordinary function to the Analyzer interface
type AnalyzerFunc func(path, content, env string, minify bool) (any, error)

// Analyze calls f(path, content, env, minify)
func (f AnalyzerFunc) Analyze(path, content, env string, minify bool) (any, error) {
	return f(path, content, env, minify)
}

// Request is a single analysis request. It is passed by value into exactly
// one execution path and never shared between calls.
type Request struct {
	Path    string
	Content string
	Env     string
	Minify  bool
}

// Outcome is the result of running the Analyzer for one Request
type Outcome struct {
	// Value is the structured analysis result
	Value any

	// Err is the failure reported by the Analyzer or the backend
	Err error
}

// Runner executes one request synchronously. Backends call it on a worker
// goroutine; it is the only place the Analyzer is invoked.
type Runner func(Request) Outcome

// Backend executes requests off the calling goroutine
type Backend interface {
	// Submit hands the request to the backend. It blocks until the backend
	// admits the request or ctx is done. The returned receiver delivers
	// exactly one Outcome.
	Submit(ctx context.Context, req Request) (*oneshot.Receiver[Outcome], error)

	// Strategy returns the strategy implemented by the backend
	Strategy() Strategy

	// Stats returns backend statistics
	Stats() BackendStats

	// Close releases backend resources
	Close() error
}

// BackendStats defines basic statistics for execution backends
type BackendStats struct {
	// Capacity is the maximum number of concurrently running analyses
	Capacity int

	// Active is the number of analyses currently running
	Active int64

	// Queued is the number of requests admitted but not yet started
	Queued int

	// Completed is the number of analyses that delivered an outcome
	Completed int64

	// Panicked is the number of analyses that panicked
	Panicked int64
}

// Strategy selects the execution backend
type Strategy int

const (
	// StrategySpawn runs each call on a fresh goroutine behind an admission semaphore
	StrategySpawn Strategy = iota
	// StrategyPool runs calls on a fixed set of long-lived workers
	StrategyPool
)

// String returns the string representation of Strategy
func (s Strategy) String() string {
	switch s {
	case StrategySpawn:
		return "spawn"
	case StrategyPool:
		return "pool"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a selector to a Strategy. Matching is case-insensitive;
// anything that is not a pool marker selects StrategySpawn.
func ParseStrategy(s string) Strategy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pool", "fixed":
		return StrategyPool
	default:
		return StrategySpawn
	}
}

// Config is the resolved, immutable dispatcher configuration
type Config struct {
	// Strategy is the offload backend used when MaxThreads > 0
	Strategy Strategy

	// MaxThreads bounds concurrently executing analyses; 0 forces inline execution
	MaxThreads int

	// MinStackSize is the minimum goroutine stack ceiling, in bytes, required by workers
	MinStackSize int
}

// Inline reports whether concurrency is disabled
func (c Config) Inline() bool {
	return c.MaxThreads == 0
}

// Workers returns the backend capacity, max(MaxThreads, 1)
func (c Config) Workers() int {
	if c.MaxThreads < 1 {
		return 1
	}
	return c.MaxThreads
}

// Result defines the result of asynchronous execution
type Result[R any] struct {
	// Value is the execution result
	Value R

	// Error is the execution error
	Error error

	// Duration is the execution time
	Duration time.Duration
}

// BatchResult defines the result of one request in a batch
type BatchResult[R any] struct {
	// Index is the position of the request in the batch
	Index int

	// Value is the execution result
	Value R

	// Error is the execution error
	Error error

	// Duration is the execution time
	Duration time.Duration
}

// Stats defines dispatcher statistics
type Stats struct {
	// Strategy is the configured strategy
	Strategy Strategy

	// MaxThreads is the configured concurrency bound
	MaxThreads int

	// InFlight is the number of calls currently executing or waiting
	InFlight int64

	// TotalInline is the number of calls executed inline
	TotalInline int64

	// TotalOffloaded is the number of calls executed by a backend
	TotalOffloaded int64

	// TotalFailed is the number of calls that returned an error
	TotalFailed int64

	// Backend holds backend statistics once a backend exists
	Backend BackendStats
}
