// Package config resolves the dispatcher configuration from the process environment
package config

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/jzx17/reframe/pkg/types"
)

const (
	// EnvPrefix prefixes every environment setting
	EnvPrefix = "REFRAME"

	// KeyStrategy selects the offload strategy (REFRAME_STRATEGY)
	KeyStrategy = "strategy"

	// KeyMaxThreads overrides the concurrency bound (REFRAME_MAX_THREADS)
	KeyMaxThreads = "max_threads"

	// KeyMinStack sets the minimum worker stack ceiling in bytes (REFRAME_MIN_STACK)
	KeyMinStack = "min_stack"

	// DefaultMinStackSize is used when no minimum stack size is configured
	DefaultMinStackSize = 8 << 20
)

// Resolver computes the Config exactly once. Every call to Resolve after
// the first returns the identical value.
type Resolver struct {
	v           *viper.Viper
	parallelism func() int
	logger      zerolog.Logger

	once        sync.Once
	cfg         types.Config
	resolutions atomic.Int32
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithViper reads settings from v instead of the process environment
func WithViper(v *viper.Viper) ResolverOption {
	return func(r *Resolver) {
		r.v = v
	}
}

// WithParallelism overrides the hardware parallelism lookup
func WithParallelism(fn func() int) ResolverOption {
	return func(r *Resolver) {
		r.parallelism = fn
	}
}

// WithLogger sets the logger used to report fallbacks
func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver. Without WithViper it reads REFRAME_*
// variables from the process environment.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		parallelism: runtime.NumCPU,
		logger:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.v == nil {
		r.v = viper.New()
		r.v.SetEnvPrefix(EnvPrefix)
		r.v.AutomaticEnv()
	}

	return r
}

var defaultResolver = sync.OnceValue(func() *Resolver {
	return NewResolver()
})

// Default returns the process-wide resolver backed by the environment
func Default() *Resolver {
	return defaultResolver()
}

// Resolve returns the configuration, computing it on first use
func (r *Resolver) Resolve() types.Config {
	r.once.Do(func() {
		r.resolutions.Add(1)
		r.cfg = r.resolve()
		r.logger.Debug().
			Str("strategy", r.cfg.Strategy.String()).
			Int("max_threads", r.cfg.MaxThreads).
			Int("min_stack", r.cfg.MinStackSize).
			Msg("configuration resolved")
	})
	return r.cfg
}

// resolve reads every setting. Malformed values fall back to defaults and
// are never reported to callers.
func (r *Resolver) resolve() types.Config {
	return types.Config{
		Strategy:     types.ParseStrategy(r.v.GetString(KeyStrategy)),
		MaxThreads:   r.maxThreads(),
		MinStackSize: r.minStackSize(),
	}
}

func (r *Resolver) maxThreads() int {
	fallback := r.parallelism()
	if fallback < 1 {
		fallback = 1
	}

	raw := strings.TrimSpace(r.v.GetString(KeyMaxThreads))
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		r.logger.Debug().
			Str("value", raw).
			Int("fallback", fallback).
			Msg("ignoring malformed max_threads setting")
		return fallback
	}
	return n
}

func (r *Resolver) minStackSize() int {
	raw := strings.TrimSpace(r.v.GetString(KeyMinStack))
	if raw == "" {
		return DefaultMinStackSize
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		r.logger.Debug().
			Str("value", raw).
			Msg("ignoring malformed min_stack setting")
		return DefaultMinStackSize
	}
	return n
}
