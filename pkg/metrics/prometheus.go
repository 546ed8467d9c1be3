package metrics

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusOptions controls collector configuration
type PrometheusOptions struct {
	Namespace       string
	DurationBuckets []float64
}

// PrometheusRecorder adapts Recorder to Prometheus collectors
type PrometheusRecorder struct {
	dispatchTotal   *prom.CounterVec
	analysisSeconds *prom.HistogramVec
	admissionWait   *prom.HistogramVec
	inFlight        *prom.GaugeVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates and registers the dispatcher collectors
func NewPrometheusRecorder(reg prom.Registerer, opts PrometheusOptions) (*PrometheusRecorder, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "reframe"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	dispatchVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_total",
		Help:      "Total number of dispatched analysis calls by outcome.",
	}, []string{"mode", "outcome"})
	analysisVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Analyzer execution time in seconds.",
		Buckets:   buckets,
	}, []string{"mode"})
	admissionVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "admission_wait_seconds",
		Help:      "Time spent waiting for a backend to admit a call.",
		Buckets:   buckets,
	}, []string{"mode"})
	inFlightVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "in_flight",
		Help:      "Number of analysis calls in progress.",
	}, []string{"mode"})

	var err error
	if dispatchVec, err = registerCollector(reg, dispatchVec); err != nil {
		return nil, fmt.Errorf("register dispatch_total: %w", err)
	}
	if analysisVec, err = registerCollector(reg, analysisVec); err != nil {
		return nil, fmt.Errorf("register analysis_duration_seconds: %w", err)
	}
	if admissionVec, err = registerCollector(reg, admissionVec); err != nil {
		return nil, fmt.Errorf("register admission_wait_seconds: %w", err)
	}
	if inFlightVec, err = registerCollector(reg, inFlightVec); err != nil {
		return nil, fmt.Errorf("register in_flight: %w", err)
	}

	return &PrometheusRecorder{
		dispatchTotal:   dispatchVec,
		analysisSeconds: analysisVec,
		admissionWait:   admissionVec,
		inFlight:        inFlightVec,
	}, nil
}

func registerCollector[T prom.Collector](reg prom.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return c, fmt.Errorf("collector type mismatch: %T", are.ExistingCollector)
			}
			return existing, nil
		}
		return c, err
	}
	return c, nil
}

// ObserveAdmission records an admission wait
func (r *PrometheusRecorder) ObserveAdmission(mode string, wait time.Duration) {
	if r == nil {
		return
	}
	r.admissionWait.WithLabelValues(mode).Observe(wait.Seconds())
}

// ObserveAnalysis records an Analyzer run time
func (r *PrometheusRecorder) ObserveAnalysis(mode string, took time.Duration) {
	if r == nil {
		return
	}
	r.analysisSeconds.WithLabelValues(mode).Observe(took.Seconds())
}

// ObserveDispatch counts a finished call
func (r *PrometheusRecorder) ObserveDispatch(mode, outcome string) {
	if r == nil {
		return
	}
	r.dispatchTotal.WithLabelValues(mode, outcome).Inc()
}

// InFlight adjusts the in-flight gauge
func (r *PrometheusRecorder) InFlight(mode string, delta int) {
	if r == nil {
		return
	}
	r.inFlight.WithLabelValues(mode).Add(float64(delta))
}
