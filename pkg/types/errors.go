package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrAnalysis marks failures reported by the Analyzer
	ErrAnalysis = errors.New("analysis failed")

	// ErrSerialization marks failures encoding an analysis result
	ErrSerialization = errors.New("result serialization failed")

	// ErrDispatch marks failures of the offload machinery
	ErrDispatch = errors.New("dispatch failed")

	// ErrWorkerPanic indicates the Analyzer panicked on a worker
	ErrWorkerPanic = errors.New("worker panicked")

	// ErrDispatcherClosed indicates the dispatcher was closed
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrBackendClosed indicates the execution backend was closed
	ErrBackendClosed = errors.New("execution backend is closed")
)

// ErrorKind classifies a DispatchError
type ErrorKind int

const (
	// KindAnalysis is a semantic failure reported by the Analyzer
	KindAnalysis ErrorKind = iota
	// KindSerialization is a failure encoding the result
	KindSerialization
	// KindDispatch is a worker join, pool submission or channel failure
	KindDispatch
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindAnalysis:
		return "analysis"
	case KindSerialization:
		return "serialization"
	case KindDispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindAnalysis:
		return ErrAnalysis
	case KindSerialization:
		return ErrSerialization
	default:
		return ErrDispatch
	}
}

// DispatchError is the single error value returned across the dispatcher boundary
type DispatchError struct {
	// Kind classifies the failure
	Kind ErrorKind

	// Subsystem names the failing component, e.g. "spawn", "pool", "encoder"
	Subsystem string

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface. Analysis failures carry the
// Analyzer's message verbatim.
func (e *DispatchError) Error() string {
	cause := e.Cause
	if cause == nil {
		cause = e.Kind.sentinel()
	}
	switch e.Kind {
	case KindAnalysis:
		return cause.Error()
	case KindSerialization:
		return fmt.Sprintf("failed to serialize analysis result: %v", cause)
	default:
		return fmt.Sprintf("dispatch error in %s: %v", e.Subsystem, cause)
	}
}

// Unwrap returns the underlying error
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinel as well as anything in the cause chain
func (e *DispatchError) Is(target error) bool {
	if target == e.Kind.sentinel() {
		return true
	}
	return errors.Is(e.Cause, target)
}

// WithContext adds error context
func (e *DispatchError) WithContext(key string, value interface{}) *DispatchError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newDispatchError(kind ErrorKind, subsystem string, cause error) *DispatchError {
	return &DispatchError{
		Kind:      kind,
		Subsystem: subsystem,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// NewAnalysisError wraps a failure reported by the Analyzer
func NewAnalysisError(cause error) *DispatchError {
	return newDispatchError(KindAnalysis, "analyzer", cause)
}

// NewSerializationError wraps a result encoding failure
func NewSerializationError(cause error) *DispatchError {
	return newDispatchError(KindSerialization, "encoder", cause)
}

// NewDispatchError wraps a failure of the named offload subsystem
func NewDispatchError(subsystem string, cause error) *DispatchError {
	return newDispatchError(KindDispatch, subsystem, cause)
}

// KindOf returns the kind of err and whether err is a DispatchError
func KindOf(err error) (ErrorKind, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// IsRetryable reports whether a caller may reasonably retry the call.
// Only dispatch failures qualify; analysis and serialization failures are
// deterministic for a given request, and a closed dispatcher or backend
// stays closed.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrDispatcherClosed) || errors.Is(err, ErrBackendClosed) {
		return false
	}
	kind, ok := KindOf(err)
	return ok && kind == KindDispatch
}
