package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the screening coordinator. Tracks
// session throughput, step completion latency, and concurrency friction
// (lock contention is the signal that staff are stepping on each other).
type Metrics struct {
	SessionsCreated    prometheus.Counter
	StepsCompleted     prometheus.Counter
	LockContention     prometheus.Counter
	ApprovalsRequested prometheus.Counter
	ApprovalsRejected  prometheus.Counter
	UpdateStepDuration prometheus.Histogram
	BroadcastDuration  prometheus.Histogram
}

// New creates a Metrics instance with all coordinator metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "screenflow_sessions_created_total",
			Help: "Total number of screening sessions created",
		}),
		StepsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "screenflow_steps_completed_total",
			Help: "Total number of workflow steps completed",
		}),
		LockContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "screenflow_lock_contention_total",
			Help: "Step mutations rejected because another user held the lock",
		}),
		ApprovalsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "screenflow_approvals_requested_total",
			Help: "Total number of approval requests created",
		}),
		ApprovalsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "screenflow_approvals_rejected_total",
			Help: "Total number of approval requests rejected",
		}),
		UpdateStepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "screenflow_update_step_duration_seconds",
			Help:    "Duration of UpdateStep operations (hot collaboration path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BroadcastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "screenflow_broadcast_duration_seconds",
			Help:    "Duration of broadcast publishes inside the critical section",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

// ObserveUpdateStep records the duration of an UpdateStep operation.
func (m *Metrics) ObserveUpdateStep(start time.Time) {
	m.UpdateStepDuration.Observe(time.Since(start).Seconds())
}

// ObserveBroadcast records the duration of a broadcast publish.
func (m *Metrics) ObserveBroadcast(start time.Time) {
	m.BroadcastDuration.Observe(time.Since(start).Seconds())
}
