package mass

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wecom_ops_mass_operations_total",
		Help: "Task lifecycle operations by operation and result kind",
	}, []string{"operation", "result"})

	planDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wecom_ops_mass_plan_duration_seconds",
		Help:    "Time spent resolving and materializing a task plan",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	plannedRecipients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wecom_ops_mass_planned_recipients_total",
		Help: "Snapshot rows written by plan",
	})

	snapshotTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wecom_ops_mass_snapshot_transitions_total",
		Help: "Snapshot rows moved to a new state",
	}, []string{"to"})
)

func observeOperation(op Operation, err error) {
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	operationsTotal.WithLabelValues(string(op), result).Inc()
}
