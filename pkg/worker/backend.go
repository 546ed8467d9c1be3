package worker

import (
	"context"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/jzx17/reframe/pkg/types"
)

// queueDepthPerWorker sizes the pool queue relative to the worker count
const queueDepthPerWorker = 64

// BackendOptions carries the collaborators shared by every backend
type BackendOptions struct {
	Runner types.Runner
	Clock  quartz.Clock
	Logger *zerolog.Logger
}

// NewBackend builds and starts the backend selected by cfg.Strategy, sized
// to cfg.Workers().
func NewBackend(cfg types.Config, opts BackendOptions) (types.Backend, error) {
	switch cfg.Strategy {
	case types.StrategyPool:
		pool, err := NewFixedWorkerPool(&FixedWorkerPoolConfig{
			PoolSize:  cfg.Workers(),
			QueueSize: cfg.Workers() * queueDepthPerWorker,
			Runner:    opts.Runner,
			Clock:     opts.Clock,
			Logger:    opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		// workers live until Close, not until some caller's context ends
		if err := pool.Start(context.Background()); err != nil {
			return nil, err
		}
		return pool, nil
	default:
		spawner, err := NewBoundedSpawner(&BoundedSpawnerConfig{
			MaxConcurrent: cfg.Workers(),
			Runner:        opts.Runner,
			Clock:         opts.Clock,
			Logger:        opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		return spawner, nil
	}
}
