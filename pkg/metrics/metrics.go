// Package metrics records dispatcher activity
package metrics

import (
	"time"

	"github.com/jzx17/reframe/pkg/types"
)

// Outcome labels for dispatched calls
const (
	OutcomeSuccess       = "success"
	OutcomeAnalysis      = "analysis_error"
	OutcomeSerialization = "serialization_error"
	OutcomeDispatch      = "dispatch_error"
	OutcomeAbandoned     = "abandoned"
)

// ModeInline labels calls executed on the caller's goroutine
const ModeInline = "inline"

// Recorder receives dispatcher measurements. mode is "inline" or the
// strategy name of the backend that served the call.
type Recorder interface {
	// ObserveAdmission records how long a call waited to be admitted by a backend
	ObserveAdmission(mode string, wait time.Duration)

	// ObserveAnalysis records the Analyzer run time on a worker
	ObserveAnalysis(mode string, took time.Duration)

	// ObserveDispatch records the final outcome of a call
	ObserveDispatch(mode, outcome string)

	// InFlight adjusts the number of calls in progress
	InFlight(mode string, delta int)
}

// NopRecorder discards all measurements
type NopRecorder struct{}

func (NopRecorder) ObserveAdmission(string, time.Duration) {}
func (NopRecorder) ObserveAnalysis(string, time.Duration)  {}
func (NopRecorder) ObserveDispatch(string, string)         {}
func (NopRecorder) InFlight(string, int)                   {}

// OutcomeOf maps a call error to its outcome label
func OutcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	kind, ok := types.KindOf(err)
	if !ok {
		return OutcomeAbandoned
	}
	switch kind {
	case types.KindAnalysis:
		return OutcomeAnalysis
	case types.KindSerialization:
		return OutcomeSerialization
	default:
		return OutcomeDispatch
	}
}
