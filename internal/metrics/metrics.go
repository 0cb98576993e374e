package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coupon"

var (
	// OperationsTotal counts service operations by outcome (ok or the error kind)
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Coupon operations by name and outcome.",
	}, []string{"operation", "outcome"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of coupon operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	CodesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "codes_generated_total",
		Help:      "Coupon codes stored, by source.",
	}, []string{"source"})

	LockContention = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lock_contention_total",
		Help:      "Lock attempts rejected because another holder owned the lock.",
	})
)

// Observe records the outcome and latency of one operation
func Observe(operation, outcome string, started time.Time) {
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
