package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation metrics through a Prometheus
// registerer: a per-operation duration histogram, a success/error counter,
// and a completed-validation counter labeled by urgency and final status.
type PrometheusMetricsRecorder struct {
	durations   *prometheus.HistogramVec
	results     *prometheus.CounterVec
	completions *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder constructs and registers the collectors.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clinicore",
		Subsystem: "validation",
		Name:      "operation_duration_seconds",
		Help:      "Duration of validation service operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clinicore",
		Subsystem: "validation",
		Name:      "operation_results_total",
		Help:      "Validation service operation outcomes by status.",
	}, []string{"operation", "status"})
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clinicore",
		Subsystem: "validation",
		Name:      "completions_total",
		Help:      "Completed validations by clinical urgency and final status.",
	}, []string{"urgency", "status"})

	for _, collector := range []prometheus.Collector{durations, results, completions} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return &PrometheusMetricsRecorder{durations: durations, results: results, completions: completions}, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// ObserveCompletion implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) ObserveCompletion(_ context.Context, urgency ClinicalUrgency, status ValidationStatus) {
	r.completions.WithLabelValues(string(urgency), string(status)).Inc()
}
