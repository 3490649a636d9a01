// Package metrics defines the Prometheus collectors for portfolio mutations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PositionMutations counts committed mutations of positioned entities.
	// Labels: entity (section, component), operation (create, update, delete, reorder)
	PositionMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hackerfolio",
			Subsystem: "positions",
			Name:      "mutations_total",
			Help:      "Total number of committed section and component mutations",
		},
		[]string{"entity", "operation"},
	)

	// ShiftedSiblings observes how many siblings moved as a side effect of one mutation.
	ShiftedSiblings = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hackerfolio",
			Subsystem: "positions",
			Name:      "shifted_siblings",
			Help:      "Number of sibling positions rewritten by a reorder or delete",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"entity", "operation"},
	)

	// GuardRejections counts requests refused by a capacity or deletion guard.
	// Labels: reason (section_limit, component_limit, last_section)
	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hackerfolio",
			Subsystem: "positions",
			Name:      "guard_rejections_total",
			Help:      "Total number of mutations rejected by a guard",
		},
		[]string{"reason"},
	)

	// PublishOperations counts publish and unpublish attempts.
	// Labels: operation (publish, unpublish), result (success, error)
	PublishOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hackerfolio",
			Subsystem: "publish",
			Name:      "operations_total",
			Help:      "Total number of publish lifecycle operations",
		},
		[]string{"operation", "result"},
	)
)

// ObserveMutation records a committed mutation and the siblings it shifted.
func ObserveMutation(entity, operation string, shifted int) {
	PositionMutations.WithLabelValues(entity, operation).Inc()
	if operation == "reorder" || operation == "delete" {
		ShiftedSiblings.WithLabelValues(entity, operation).Observe(float64(shifted))
	}
}
