package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/jzx17/reframe/pkg/oneshot"
	"github.com/jzx17/reframe/pkg/types"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateIdle represents idle worker state
	WorkerStateIdle WorkerState = iota
	// WorkerStateWorking represents working worker state
	WorkerStateWorking
	// WorkerStateStopped represents stopped worker state
	WorkerStateStopped
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateWorking:
		return "working"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// job is one queued submission together with its result channel
type job struct {
	req      types.Request
	sender   *oneshot.Sender[types.Outcome]
	queuedAt time.Time
}

// Worker is a single long-lived pool goroutine
type Worker struct {
	id    int
	state int32 // atomic state
	jobs  <-chan job
	run   types.Runner

	// statistics
	totalProcessed int64
	totalPanicked  int64
	lastJobTime    int64 // Unix nanosecond timestamp

	clock  quartz.Clock
	logger zerolog.Logger
}

// newWorker creates a Worker reading from jobs
func newWorker(id int, jobs <-chan job, run types.Runner, clock quartz.Clock, logger zerolog.Logger) *Worker {
	return &Worker{
		id:     id,
		state:  int32(WorkerStateIdle),
		jobs:   jobs,
		run:    run,
		clock:  clock,
		logger: logger.With().Int("worker_id", id).Logger(),
	}
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// Start runs the worker loop until ctx is done or the job channel closes.
// A job that ends the goroutine (runtime.Goexit) unwinds Start without
// returning; the pool notices and restarts the loop.
func (w *Worker) Start(ctx context.Context) {
	atomic.StoreInt32(&w.state, int32(WorkerStateIdle))
	defer atomic.StoreInt32(&w.state, int32(WorkerStateStopped))

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-w.jobs:
			if !ok {
				return
			}
			w.processJob(j)
		}
	}
}

// processJob runs one job. A panicking Analyzer drops the job's sender so
// the waiting caller fails while this worker keeps serving. An Analyzer
// that ends the goroutine also drops the sender; the pool restarts the loop.
func (w *Worker) processJob(j job) {
	atomic.StoreInt32(&w.state, int32(WorkerStateWorking))
	defer atomic.StoreInt32(&w.state, int32(WorkerStateIdle))
	defer j.sender.Drop()

	start := w.clock.Now()
	atomic.StoreInt64(&w.lastJobTime, start.UnixNano())

	finished := false
	defer func() {
		if !finished {
			atomic.AddInt64(&w.totalPanicked, 1)
			w.logger.Error().
				Str("path", j.req.Path).
				Msg("analyzer terminated its pool worker goroutine")
		}
	}()

	out, p := runSafely(w.run, j.req)
	finished = true
	if p != nil {
		atomic.AddInt64(&w.totalPanicked, 1)
		w.logger.Error().
			Str("path", j.req.Path).
			Interface("panic", p.value).
			Str("stack_trace", p.stack).
			Msg("analyzer panicked on pool worker")
		return
	}

	atomic.AddInt64(&w.totalProcessed, 1)
	w.logger.Debug().
		Str("path", j.req.Path).
		Dur("queued", start.Sub(j.queuedAt)).
		Dur("took", w.clock.Since(start)).
		Msg("job processed")
	j.sender.Send(out)
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:             w.id,
		State:          w.State(),
		TotalProcessed: atomic.LoadInt64(&w.totalProcessed),
		TotalPanicked:  atomic.LoadInt64(&w.totalPanicked),
		LastJobTime:    time.Unix(0, atomic.LoadInt64(&w.lastJobTime)),
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID             int
	State          WorkerState
	TotalProcessed int64
	TotalPanicked  int64
	LastJobTime    time.Time
}

// IsActive checks if Worker is active
func (ws WorkerStats) IsActive() bool {
	return ws.State == WorkerStateWorking
}
