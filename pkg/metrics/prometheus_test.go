package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/reframe/pkg/types"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	rec, err := NewPrometheusRecorder(reg, PrometheusOptions{})
	require.NoError(t, err)

	rec.ObserveDispatch("pool", OutcomeSuccess)
	rec.ObserveDispatch("pool", OutcomeSuccess)
	rec.ObserveDispatch(ModeInline, OutcomeAnalysis)
	rec.InFlight("spawn", 1)
	rec.InFlight("spawn", 1)
	rec.InFlight("spawn", -1)
	rec.ObserveAnalysis("pool", 15*time.Millisecond)
	rec.ObserveAdmission("pool", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.dispatchTotal.WithLabelValues("pool", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.dispatchTotal.WithLabelValues(ModeInline, OutcomeAnalysis)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.inFlight.WithLabelValues("spawn")))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.analysisSeconds))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.admissionWait))

	expected := `
# HELP reframe_in_flight Number of analysis calls in progress.
# TYPE reframe_in_flight gauge
reframe_in_flight{mode="spawn"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "reframe_in_flight"))
}

func TestPrometheusRecorder_ReusesRegisteredCollectors(t *testing.T) {
	reg := prom.NewRegistry()

	first, err := NewPrometheusRecorder(reg, PrometheusOptions{Namespace: "analysis"})
	require.NoError(t, err)
	second, err := NewPrometheusRecorder(reg, PrometheusOptions{Namespace: "analysis"})
	require.NoError(t, err)

	first.ObserveDispatch("spawn", OutcomeSuccess)
	second.ObserveDispatch("spawn", OutcomeSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.dispatchTotal.WithLabelValues("spawn", OutcomeSuccess)))
}

func TestPrometheusRecorder_NilReceiver(t *testing.T) {
	var rec *PrometheusRecorder
	assert.NotPanics(t, func() {
		rec.ObserveDispatch("pool", OutcomeSuccess)
		rec.ObserveAnalysis("pool", time.Second)
		rec.ObserveAdmission("pool", time.Second)
		rec.InFlight("pool", 1)
	})
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, OutcomeSuccess},
		{"analysis", types.NewAnalysisError(errors.New("bad")), OutcomeAnalysis},
		{"serialization", types.NewSerializationError(errors.New("bad")), OutcomeSerialization},
		{"dispatch", types.NewDispatchError("pool", errors.New("bad")), OutcomeDispatch},
		{"caller abandoned", errors.New("context canceled"), OutcomeAbandoned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeOf(tt.err))
		})
	}
}
