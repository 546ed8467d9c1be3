// Package dispatch is the entry point that runs analyses inline or on an execution backend
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/quartz"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jzx17/reframe/pkg/config"
	"github.com/jzx17/reframe/pkg/metrics"
	"github.com/jzx17/reframe/pkg/types"
	"github.com/jzx17/reframe/pkg/worker"
)

// Dispatcher decides per call between inline and offloaded execution and
// waits for the outcome. The configuration and the backend are created on
// first use and shared by every later call.
type Dispatcher struct {
	analyzer types.Analyzer
	resolver *config.Resolver
	fixed    *types.Config
	logger   zerolog.Logger
	metrics  metrics.Recorder
	clock    quartz.Clock

	inlineRun types.Runner

	backendOnce sync.Once
	backend     types.Backend
	backendErr  error
	live        atomic.Pointer[types.Backend]

	closed atomic.Bool

	// statistics
	inFlight       atomic.Int64
	totalInline    atomic.Int64
	totalOffloaded atomic.Int64
	totalFailed    atomic.Int64
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithResolver sets the configuration resolver (defaults to config.Default())
func WithResolver(r *config.Resolver) Option {
	return func(d *Dispatcher) {
		d.resolver = r
	}
}

// WithConfig bypasses resolution and uses cfg as is
func WithConfig(cfg types.Config) Option {
	return func(d *Dispatcher) {
		d.fixed = &cfg
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m metrics.Recorder) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithClock sets the clock used for timing measurements
func WithClock(clock quartz.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

// New creates a Dispatcher for analyzer
func New(analyzer types.Analyzer, opts ...Option) (*Dispatcher, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}

	d := &Dispatcher{
		analyzer: analyzer,
		logger:   zerolog.Nop(),
		metrics:  metrics.NopRecorder{},
		clock:    quartz.NewReal(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.resolver == nil {
		d.resolver = config.Default()
	}
	d.inlineRun = d.runner(metrics.ModeInline)

	return d, nil
}

// Config returns the resolved configuration
func (d *Dispatcher) Config() types.Config {
	if d.fixed != nil {
		return *d.fixed
	}
	return d.resolver.Resolve()
}

// Analyze runs one analysis and returns the serialized result. With
// MaxThreads == 0 the Analyzer runs on the calling goroutine; otherwise the
// call waits for admission by the configured backend and then for the
// outcome. Cancelling ctx abandons the wait but never a started analysis.
func (d *Dispatcher) Analyze(ctx context.Context, path, content, env string, minify bool) (string, error) {
	cfg := d.Config()
	return d.dispatch(ctx, cfg, cfg.Inline(), newRequest(path, content, env, minify))
}

// AnalyzeAsync runs Analyze and delivers exactly one Result on the
// returned channel, which is then closed. In inline mode the analysis runs
// before AnalyzeAsync returns.
func (d *Dispatcher) AnalyzeAsync(ctx context.Context, path, content, env string, minify bool) <-chan types.Result[string] {
	resultChan := make(chan types.Result[string], 1)

	cfg := d.Config()
	req := newRequest(path, content, env, minify)

	deliver := func() {
		defer close(resultChan)

		start := d.clock.Now()
		value, err := d.dispatch(ctx, cfg, cfg.Inline(), req)
		resultChan <- types.Result[string]{
			Value:    value,
			Error:    err,
			Duration: d.clock.Since(start),
		}
	}

	if cfg.Inline() {
		deliver()
	} else {
		go deliver()
	}

	return resultChan
}

// AnalyzeSync always runs inline, without back-pressure. A failure carries
// the Analyzer's message.
func (d *Dispatcher) AnalyzeSync(path, content, env string, minify bool) (string, error) {
	return d.dispatch(context.Background(), d.Config(), true, newRequest(path, content, env, minify))
}

func newRequest(path, content, env string, minify bool) types.Request {
	if env == "" {
		env = types.DefaultEnv
	}
	return types.Request{
		Path:    path,
		Content: content,
		Env:     env,
		Minify:  minify,
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, cfg types.Config, inline bool, req types.Request) (result string, err error) {
	if d.closed.Load() {
		return "", types.NewDispatchError("dispatcher", types.ErrDispatcherClosed)
	}

	mode := metrics.ModeInline
	if !inline {
		mode = cfg.Strategy.String()
	}

	d.inFlight.Add(1)
	d.metrics.InFlight(mode, 1)
	defer func() {
		d.inFlight.Add(-1)
		d.metrics.InFlight(mode, -1)
		d.metrics.ObserveDispatch(mode, metrics.OutcomeOf(err))
		if err != nil {
			d.totalFailed.Add(1)
			d.logger.Debug().Err(err).Str("mode", mode).Str("path", req.Path).Msg("analysis call failed")
		}
	}()

	var out types.Outcome
	if inline {
		d.totalInline.Add(1)
		out = worker.RunInline(d.inlineRun, req)
	} else {
		d.totalOffloaded.Add(1)
		if out, err = d.offload(ctx, cfg, req); err != nil {
			return "", err
		}
	}

	if out.Err != nil {
		return "", out.Err
	}
	return encode(out.Value)
}

// offload submits req to the backend and waits for its outcome
func (d *Dispatcher) offload(ctx context.Context, cfg types.Config, req types.Request) (types.Outcome, error) {
	subsystem := cfg.Strategy.String()

	backend, err := d.backendFor(cfg)
	if err != nil {
		return types.Outcome{}, types.NewDispatchError(subsystem, fmt.Errorf("create backend: %w", err))
	}

	start := d.clock.Now()
	rx, err := backend.Submit(ctx, req)
	d.metrics.ObserveAdmission(subsystem, d.clock.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return types.Outcome{}, ctx.Err()
		}
		return types.Outcome{}, types.NewDispatchError(subsystem, fmt.Errorf("submit: %w", err))
	}

	out, err := rx.Recv(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// the worker keeps running; its outcome is discarded
			return types.Outcome{}, ctx.Err()
		}
		return types.Outcome{}, types.NewDispatchError(subsystem, fmt.Errorf("result channel: %w", err)).
			WithContext("path", req.Path)
	}
	return out, nil
}

// backendFor creates the backend on first use. Worker stacks are prepared
// before the first worker goroutine exists.
func (d *Dispatcher) backendFor(cfg types.Config) (types.Backend, error) {
	d.backendOnce.Do(func() {
		config.PrepareWorkerStacks(cfg)

		d.backend, d.backendErr = worker.NewBackend(cfg, worker.BackendOptions{
			Runner: d.runner(cfg.Strategy.String()),
			Clock:  d.clock,
			Logger: &d.logger,
		})
		if d.backendErr != nil {
			d.logger.Error().Err(d.backendErr).Str("strategy", cfg.Strategy.String()).Msg("failed to create execution backend")
			return
		}

		d.live.Store(&d.backend)
		d.logger.Info().
			Str("strategy", cfg.Strategy.String()).
			Int("workers", cfg.Workers()).
			Msg("execution backend created")
	})
	if d.backend == nil && d.backendErr == nil {
		// Close won the race to the once
		return nil, types.ErrDispatcherClosed
	}
	return d.backend, d.backendErr
}

// runner wraps the Analyzer: it normalizes the path, times the call and
// classifies its failure.
func (d *Dispatcher) runner(mode string) types.Runner {
	return func(req types.Request) types.Outcome {
		start := d.clock.Now()
		value, err := d.analyzer.Analyze(NormalizePath(req.Path), req.Content, req.Env, req.Minify)
		d.metrics.ObserveAnalysis(mode, d.clock.Since(start))
		if err != nil {
			return types.Outcome{Err: types.NewAnalysisError(err)}
		}
		return types.Outcome{Value: value}
	}
}

func encode(value any) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", types.NewSerializationError(err)
	}
	return string(b), nil
}

// Stats returns dispatcher statistics
func (d *Dispatcher) Stats() types.Stats {
	cfg := d.Config()
	stats := types.Stats{
		Strategy:       cfg.Strategy,
		MaxThreads:     cfg.MaxThreads,
		InFlight:       d.inFlight.Load(),
		TotalInline:    d.totalInline.Load(),
		TotalOffloaded: d.totalOffloaded.Load(),
		TotalFailed:    d.totalFailed.Load(),
	}
	if b := d.live.Load(); b != nil {
		stats.Backend = (*b).Stats()
	}
	return stats
}

// Close rejects new calls and releases the backend. It is never required;
// a process may simply exit.
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	// prevent a backend from being created after Close
	d.backendOnce.Do(func() {})

	if d.backend != nil {
		return d.backend.Close()
	}
	return nil
}
