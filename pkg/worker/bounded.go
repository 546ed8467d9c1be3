package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/jzx17/reframe/pkg/oneshot"
	"github.com/jzx17/reframe/pkg/types"
)

// BoundedSpawnerConfig defines configuration for the bounded per-call spawner
type BoundedSpawnerConfig struct {
	// MaxConcurrent is the admission semaphore capacity
	MaxConcurrent int

	// Runner executes one request on a spawned goroutine
	Runner types.Runner

	// Clock for time operations (optional, defaults to real clock)
	Clock quartz.Clock

	// Logger for spawner events (optional, defaults to a no-op logger)
	Logger *zerolog.Logger
}

// BoundedSpawner runs every admitted request on a fresh goroutine. An
// admission semaphore caps the number of requests running at once; it
// admits waiters in FIFO order.
type BoundedSpawner struct {
	config *BoundedSpawnerConfig
	sem    *semaphore.Weighted
	logger zerolog.Logger

	// statistics
	waiting   int64
	active    int64
	completed int64
	panicked  int64

	closed bool
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

var _ types.Backend = (*BoundedSpawner)(nil)

// NewBoundedSpawner creates a new bounded spawner
func NewBoundedSpawner(config *BoundedSpawnerConfig) (*BoundedSpawner, error) {
	if config == nil {
		return nil, fmt.Errorf("spawner config cannot be nil")
	}
	if config.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("max concurrent must be positive, got %d", config.MaxConcurrent)
	}
	if config.Runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}

	if config.Clock == nil {
		config.Clock = quartz.NewReal()
	}
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &BoundedSpawner{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
		logger: logger.With().Str("strategy", types.StrategySpawn.String()).Logger(),
	}, nil
}

// Submit waits for an admission permit, then starts the request on a new
// goroutine. Only the wait for a permit observes ctx; a started request
// always runs to completion.
func (s *BoundedSpawner) Submit(ctx context.Context, req types.Request) (*oneshot.Receiver[types.Outcome], error) {
	atomic.AddInt64(&s.waiting, 1)
	err := s.sem.Acquire(ctx, 1)
	atomic.AddInt64(&s.waiting, -1)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		s.sem.Release(1)
		return nil, types.ErrBackendClosed
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	sender, receiver := oneshot.New[types.Outcome]()
	go s.run(req, sender)

	return receiver, nil
}

// run executes one request and releases its permit when done
func (s *BoundedSpawner) run(req types.Request, sender *oneshot.Sender[types.Outcome]) {
	defer s.wg.Done()
	defer s.sem.Release(1)
	defer sender.Drop()

	atomic.AddInt64(&s.active, 1)
	defer atomic.AddInt64(&s.active, -1)

	start := s.config.Clock.Now()
	out, p := runSafely(s.config.Runner, req)
	if p != nil {
		atomic.AddInt64(&s.panicked, 1)
		s.logger.Error().
			Str("path", req.Path).
			Interface("panic", p.value).
			Str("stack_trace", p.stack).
			Msg("analyzer panicked on spawned worker")
		sender.Send(types.Outcome{Err: p.error(types.StrategySpawn.String())})
		return
	}

	atomic.AddInt64(&s.completed, 1)
	s.logger.Debug().
		Str("path", req.Path).
		Dur("took", s.config.Clock.Since(start)).
		Msg("spawned worker finished")
	sender.Send(out)
}

// Strategy returns StrategySpawn
func (s *BoundedSpawner) Strategy() types.Strategy {
	return types.StrategySpawn
}

// Close rejects new submissions and waits for running requests to finish
func (s *BoundedSpawner) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Stats gets spawner statistics
func (s *BoundedSpawner) Stats() types.BackendStats {
	return types.BackendStats{
		Capacity:  s.config.MaxConcurrent,
		Active:    atomic.LoadInt64(&s.active),
		Queued:    int(atomic.LoadInt64(&s.waiting)),
		Completed: atomic.LoadInt64(&s.completed),
		Panicked:  atomic.LoadInt64(&s.panicked),
	}
}
