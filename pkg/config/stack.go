package config

import (
	"math"
	"runtime/debug"
	"sync"

	"github.com/jzx17/reframe/pkg/types"
)

var (
	stackOnce   sync.Once
	setMaxStack = debug.SetMaxStack
)

// PrepareWorkerStacks makes sure workers can grow their stacks to at least
// cfg.MinStackSize before any worker goroutine exists. It runs once per
// process; later calls are no-ops. The ceiling is only ever raised.
func PrepareWorkerStacks(cfg types.Config) {
	stackOnce.Do(func() {
		ensureMaxStack(cfg.MinStackSize)
	})
}

// ensureMaxStack reads the process's current stack ceiling and raises it to
// minSize when it is lower. It returns the resulting ceiling and whether it
// changed. The runtime only exposes the ceiling through SetMaxStack, so it
// is read by briefly setting the largest value and then restoring it.
func ensureMaxStack(minSize int) (int, bool) {
	prev := setMaxStack(math.MaxInt)
	if minSize > prev {
		setMaxStack(minSize)
		return minSize, true
	}
	setMaxStack(prev)
	return prev, false
}
