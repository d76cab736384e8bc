// Package metrics exposes Prometheus instrumentation for the core's
// operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// operationsTotal counts completed operations by name and outcome.
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kronic",
			Subsystem: "core",
			Name:      "operations_total",
			Help:      "Total operations handled, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// operationDurationSeconds tracks end-to-end operation latency,
	// including all cluster calls and retries.
	operationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kronic",
			Subsystem: "core",
			Name:      "operation_duration_seconds",
			Help:      "End-to-end operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// accessDeniedTotal counts policy denials per namespace.
	accessDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kronic",
			Subsystem: "core",
			Name:      "access_denied_total",
			Help:      "Total namespace access denials",
		},
		[]string{"namespace"},
	)
)

func init() {
	prometheus.MustRegister(
		operationsTotal,
		operationDurationSeconds,
		accessDeniedTotal,
	)
}

// Recorder records metrics for one named operation.
type Recorder struct {
	operation string
	started   time.Time
}

// StartOperation begins timing an operation.
func StartOperation(operation string) *Recorder {
	return &Recorder{operation: operation, started: time.Now()}
}

// Done records the outcome and latency. outcome is "success" or the
// error class name.
func (r *Recorder) Done(outcome string) {
	operationsTotal.WithLabelValues(r.operation, outcome).Inc()
	operationDurationSeconds.WithLabelValues(r.operation).Observe(time.Since(r.started).Seconds())
}

// RecordAccessDenied counts a policy denial for a namespace.
func RecordAccessDenied(namespace string) {
	accessDeniedTotal.WithLabelValues(namespace).Inc()
}
