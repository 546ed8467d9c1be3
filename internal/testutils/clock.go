package testutils

import (
	"testing"

	"github.com/coder/quartz"
)

// NewMockClock creates a mock clock for testing. Time only moves when the
// test advances it, so measured durations are deterministic.
func NewMockClock(t testing.TB) *quartz.Mock {
	return quartz.NewMock(t)
}
