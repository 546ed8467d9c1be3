// Package testutils provides test analyzers and helper functions
package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jzx17/reframe/pkg/types"
)

// Report is the structured value returned by EchoAnalyzer
type Report struct {
	Path   string `json:"path"`
	Env    string `json:"env"`
	Minify bool   `json:"minify"`
	Length int    `json:"length"`
	Lines  int    `json:"lines"`
}

// EchoAnalyzer returns a Report describing its input. It is pure and safe
// for concurrent use.
func EchoAnalyzer() types.Analyzer {
	return types.AnalyzerFunc(func(path, content, env string, minify bool) (any, error) {
		return Report{
			Path:   path,
			Env:    env,
			Minify: minify,
			Length: len(content),
			Lines:  strings.Count(content, "\n") + 1,
		}, nil
	})
}

// FailingAnalyzer always fails with msg
func FailingAnalyzer(msg string) types.Analyzer {
	return types.AnalyzerFunc(func(string, string, string, bool) (any, error) {
		return nil, errors.New(msg)
	})
}

// PanicOn wraps next and panics whenever content equals trigger
func PanicOn(trigger string, next types.Analyzer) types.Analyzer {
	return types.AnalyzerFunc(func(path, content, env string, minify bool) (any, error) {
		if content == trigger {
			panic("analyzer crashed on " + path)
		}
		return next.Analyze(path, content, env, minify)
	})
}

// ConcurrencyTracker wraps an Analyzer and records how many calls run at once
type ConcurrencyTracker struct {
	next  types.Analyzer
	hold  time.Duration
	gate  chan struct{}
	once  sync.Once
	calls atomic.Int64
	cur   atomic.Int64
	peak  atomic.Int64
}

// NewConcurrencyTracker creates a tracker that keeps every call running for hold
func NewConcurrencyTracker(next types.Analyzer, hold time.Duration) *ConcurrencyTracker {
	return &ConcurrencyTracker{next: next, hold: hold}
}

// NewGatedTracker creates a tracker whose calls block until Open is called
func NewGatedTracker(next types.Analyzer) *ConcurrencyTracker {
	return &ConcurrencyTracker{next: next, gate: make(chan struct{})}
}

// Analyze implements types.Analyzer
func (p *ConcurrencyTracker) Analyze(path, content, env string, minify bool) (any, error) {
	p.calls.Add(1)
	n := p.cur.Add(1)
	defer p.cur.Add(-1)

	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if p.gate != nil {
		<-p.gate
	}
	if p.hold > 0 {
		time.Sleep(p.hold)
	}
	return p.next.Analyze(path, content, env, minify)
}

// Open releases every blocked and future call of a gated tracker
func (p *ConcurrencyTracker) Open() {
	p.once.Do(func() {
		if p.gate != nil {
			close(p.gate)
		}
	})
}

// Calls returns the number of calls that started
func (p *ConcurrencyTracker) Calls() int64 {
	return p.calls.Load()
}

// Current returns the number of calls running now
func (p *ConcurrencyTracker) Current() int64 {
	return p.cur.Load()
}

// Peak returns the highest number of simultaneous calls observed
func (p *ConcurrencyTracker) Peak() int64 {
	return p.peak.Load()
}

// Context returns a context that is cancelled when the test ends or after timeout
func Context(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually waits for condition to become true
func RequireEventually(t testing.TB, condition func() bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.Eventually(t, condition, 5*time.Second, time.Millisecond, msgAndArgs...)
}
