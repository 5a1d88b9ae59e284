// Prometheus collectors for the dispatch pipeline. Label cardinality is
// bounded: two platforms, three outcome kinds.
package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	// taskOutcomes counts applied task transitions by platform and outcome.
	taskOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_task_outcomes_total",
			Help: "Task execution outcomes applied to the task store.",
		},
		[]string{"platform", "outcome"},
	)

	// attemptDuration records how long one automation invocation took.
	attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calsync_task_attempt_duration_seconds",
			Help:    "Duration of single automation attempts.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"platform"},
	)

	// laneSlotTimeouts counts bounded session-slot waits that gave up.
	laneSlotTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_lane_slot_timeouts_total",
			Help: "Session slot acquisitions abandoned after the bounded wait.",
		},
		[]string{"platform"},
	)

	// claimConflicts counts claims lost to a raced state transition.
	claimConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "calsync_claim_conflicts_total",
			Help: "Task claims rejected because the state was raced.",
		},
	)
)

func init() {
	prometheus.MustRegister(taskOutcomes, attemptDuration, laneSlotTimeouts, claimConflicts)
}
