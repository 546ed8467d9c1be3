package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/jzx17/reframe/pkg/oneshot"
	"github.com/jzx17/reframe/pkg/types"
)

// FixedWorkerPoolConfig defines configuration for fixed worker pool
type FixedWorkerPoolConfig struct {
	// PoolSize is the number of long-lived workers
	PoolSize int

	// QueueSize is the job queue size; Submit blocks while the queue is full
	QueueSize int

	// Runner executes one request on a worker
	Runner types.Runner

	// Clock for time operations (optional, defaults to real clock)
	Clock quartz.Clock

	// Logger for pool events (optional, defaults to a no-op logger)
	Logger *zerolog.Logger
}

// DefaultFixedWorkerPoolConfig returns default configuration
func DefaultFixedWorkerPoolConfig(run types.Runner) *FixedWorkerPoolConfig {
	return &FixedWorkerPoolConfig{
		PoolSize:  10,
		QueueSize: 1024,
		Runner:    run,
		Clock:     quartz.NewReal(),
	}
}

const (
	poolStateCreated int32 = iota
	poolStateRunning
	poolStateClosed
)

// FixedWorkerPool runs requests on a fixed set of long-lived workers
type FixedWorkerPool struct {
	config  *FixedWorkerPoolConfig
	workers []*Worker
	jobs    chan job
	logger  zerolog.Logger

	// state management
	state     int32
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup

	// guards state transitions against in-progress submissions
	mu sync.RWMutex
}

var _ types.Backend = (*FixedWorkerPool)(nil)

// NewFixedWorkerPool creates a new fixed worker pool
func NewFixedWorkerPool(config *FixedWorkerPoolConfig) (*FixedWorkerPool, error) {
	if config == nil {
		return nil, fmt.Errorf("pool config cannot be nil")
	}

	// parameter validation
	if config.PoolSize <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", config.PoolSize)
	}
	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", config.QueueSize)
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

	pool := &FixedWorkerPool{
		config:  config,
		workers: make([]*Worker, config.PoolSize),
		jobs:    make(chan job, config.QueueSize),
		logger:  logger.With().Str("strategy", types.StrategyPool.String()).Logger(),
	}

	for i := 0; i < config.PoolSize; i++ {
		pool.workers[i] = newWorker(i, pool.jobs, config.Runner, config.Clock, pool.logger)
	}

	return pool, nil
}

// Start starts the worker goroutines
func (p *FixedWorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch atomic.LoadInt32(&p.state) {
	case poolStateRunning:
		return fmt.Errorf("worker pool is already running")
	case poolStateClosed:
		return types.ErrBackendClosed
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	atomic.StoreInt32(&p.state, poolStateRunning)

	for _, w := range p.workers {
		p.wg.Add(1)
		go p.serve(w)
	}

	p.logger.Info().
		Int("workers", p.config.PoolSize).
		Int("queue_size", p.config.QueueSize).
		Msg("worker pool started")
	return nil
}

// serve runs w's loop. If the loop unwinds without returning while the pool
// is still running, a fresh goroutine takes over w and its wait group slot.
func (p *FixedWorkerPool) serve(w *Worker) {
	returned := false
	defer func() {
		if !returned && p.ctx.Err() == nil {
			p.logger.Warn().Int("worker_id", w.id).Msg("restarting pool worker")
			go p.serve(w)
			return
		}
		p.wg.Done()
	}()

	w.Start(p.ctx)
	returned = true
}

// Submit queues the request and returns the receiver for its outcome. It
// blocks while the queue is full, until ctx is done or the pool closes.
func (p *FixedWorkerPool) Submit(ctx context.Context, req types.Request) (*oneshot.Receiver[types.Outcome], error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch atomic.LoadInt32(&p.state) {
	case poolStateCreated:
		return nil, fmt.Errorf("worker pool is not started")
	case poolStateClosed:
		return nil, types.ErrBackendClosed
	}

	sender, receiver := oneshot.New[types.Outcome]()
	j := job{req: req, sender: sender, queuedAt: p.config.Clock.Now()}

	select {
	case p.jobs <- j:
		return receiver, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, types.ErrBackendClosed
	}
}

// Strategy returns StrategyPool
func (p *FixedWorkerPool) Strategy() types.Strategy {
	return types.StrategyPool
}

// Close stops the workers. Jobs still queued are dropped and their callers
// observe a channel failure.
func (p *FixedWorkerPool) Close() error {
	p.closeOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}

		p.mu.Lock()
		atomic.StoreInt32(&p.state, poolStateClosed)
		p.mu.Unlock()

		p.wg.Wait()

		dropped := 0
	drain:
		for {
			select {
			case j := <-p.jobs:
				j.sender.Drop()
				dropped++
			default:
				break drain
			}
		}

		p.logger.Info().Int("dropped_jobs", dropped).Msg("worker pool closed")
	})

	return nil
}

// Size returns the worker pool size
func (p *FixedWorkerPool) Size() int {
	return p.config.PoolSize
}

// Stats gets basic worker pool statistics
func (p *FixedWorkerPool) Stats() types.BackendStats {
	stats := types.BackendStats{
		Capacity: p.config.PoolSize,
		Queued:   len(p.jobs),
	}

	for _, w := range p.workers {
		ws := w.Stats()
		if ws.IsActive() {
			stats.Active++
		}
		stats.Completed += ws.TotalProcessed
		stats.Panicked += ws.TotalPanicked
	}
	return stats
}

// IsRunning checks if the worker pool is running
func (p *FixedWorkerPool) IsRunning() bool {
	return atomic.LoadInt32(&p.state) == poolStateRunning
}

// IsClosed checks if the worker pool is closed
func (p *FixedWorkerPool) IsClosed() bool {
	return atomic.LoadInt32(&p.state) == poolStateClosed
}
