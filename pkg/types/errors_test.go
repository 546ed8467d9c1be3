package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrAnalysis", ErrAnalysis},
		{"ErrSerialization", ErrSerialization},
		{"ErrDispatch", ErrDispatch},
		{"ErrWorkerPanic", ErrWorkerPanic},
		{"ErrDispatcherClosed", ErrDispatcherClosed},
		{"ErrBackendClosed", ErrBackendClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestDispatchError_Kinds(t *testing.T) {
	cause := errors.New("unexpected token at 3:14")

	tests := []struct {
		name     string
		err      *DispatchError
		kind     ErrorKind
		sentinel error
		message  string
	}{
		{
			name:     "analysis failure keeps the message verbatim",
			err:      NewAnalysisError(cause),
			kind:     KindAnalysis,
			sentinel: ErrAnalysis,
			message:  "unexpected token at 3:14",
		},
		{
			name:     "serialization failure",
			err:      NewSerializationError(cause),
			kind:     KindSerialization,
			sentinel: ErrSerialization,
			message:  "failed to serialize analysis result: unexpected token at 3:14",
		},
		{
			name:     "dispatch failure names the subsystem",
			err:      NewDispatchError("pool", cause),
			kind:     KindDispatch,
			sentinel: ErrDispatch,
			message:  "dispatch error in pool: unexpected token at 3:14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.message, tt.err.Error())
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, tt.err, cause)
			assert.Same(t, cause, errors.Unwrap(tt.err))

			kind, ok := KindOf(fmt.Errorf("wrapped: %w", tt.err))
			assert.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestDispatchError_KindsAreDistinct(t *testing.T) {
	err := NewSerializationError(errors.New("bad value"))

	assert.ErrorIs(t, err, ErrSerialization)
	assert.NotErrorIs(t, err, ErrAnalysis)
	assert.NotErrorIs(t, err, ErrDispatch)
}

func TestDispatchError_WithContext(t *testing.T) {
	err := NewDispatchError("spawn", ErrWorkerPanic)
	err.WithContext("path", "file:///a.ts").WithContext("worker_id", 3)

	assert.Len(t, err.Context, 2)
	assert.Equal(t, 3, err.Context["worker_id"])
	assert.ErrorIs(t, err, ErrWorkerPanic)
}

func TestDispatchError_ZeroValueFields(t *testing.T) {
	tests := []struct {
		name    string
		err     *DispatchError
		message string
	}{
		{"analysis", &DispatchError{Kind: KindAnalysis}, "analysis failed"},
		{"serialization", &DispatchError{Kind: KindSerialization}, "failed to serialize analysis result: result serialization failed"},
		{"dispatch", &DispatchError{Kind: KindDispatch, Subsystem: "pool"}, "dispatch error in pool: dispatch failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				assert.Equal(t, tt.message, tt.err.Error())
				tt.err.WithContext("path", "file:///a.ts")
			})
			assert.Equal(t, "file:///a.ts", tt.err.Context["path"])
			assert.Nil(t, tt.err.Unwrap())
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"analysis failure", NewAnalysisError(errors.New("syntax")), false},
		{"serialization failure", NewSerializationError(errors.New("nan")), false},
		{"dispatch failure", NewDispatchError("pool", ErrWorkerPanic), true},
		{"wrapped dispatch failure", fmt.Errorf("call: %w", NewDispatchError("spawn", ErrWorkerPanic)), true},
		{"closed dispatcher", NewDispatchError("dispatcher", ErrDispatcherClosed), false},
		{"closed backend", fmt.Errorf("call: %w", NewDispatchError("pool", ErrBackendClosed)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "analysis", KindAnalysis.String())
	assert.Equal(t, "serialization", KindSerialization.String())
	assert.Equal(t, "dispatch", KindDispatch.String())
	assert.Equal(t, "unknown", ErrorKind(42).String())
}
