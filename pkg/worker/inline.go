package worker

import (
	"fmt"
	"runtime"

	"github.com/jzx17/reframe/pkg/types"
)

// panicInfo records a recovered Analyzer panic
type panicInfo struct {
	value interface{}
	stack string
}

// error converts the panic into a dispatch failure of the given subsystem
func (p *panicInfo) error(subsystem string) *types.DispatchError {
	return types.NewDispatchError(subsystem, fmt.Errorf("%w: %v", types.ErrWorkerPanic, p.value)).
		WithContext("stack_trace", p.stack)
}

// runSafely executes run with panic recovery support
func runSafely(run types.Runner, req types.Request) (out types.Outcome, recovered *panicInfo) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			recovered = &panicInfo{value: r, stack: string(buf[:n])}
		}
	}()

	return run(req), nil
}

// RunInline runs the request on the calling goroutine. A panic is reported
// as a dispatch failure instead of unwinding into the caller.
func RunInline(run types.Runner, req types.Request) types.Outcome {
	out, p := runSafely(run, req)
	if p != nil {
		return types.Outcome{Err: p.error("inline")}
	}
	return out
}
