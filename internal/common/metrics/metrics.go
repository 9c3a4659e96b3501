// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ValuationsComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuations_computed_total",
			Help: "Valuations produced, by vertical and the basis the range was derived from",
		},
		[]string{"vertical", "basis"},
	)

	ValuationConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valuation_confidence",
			Help:    "Confidence score attached to each valuation",
			Buckets: []float64{0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95},
		},
		[]string{"vertical"},
	)

	NarrativeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narrative_failures_total",
			Help: "Narrative generations that fell back to numbers only",
		},
		[]string{"reason"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_notifications_total",
			Help: "Notification deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)
)

// JobTimer tracks one job from activation to completion.
type JobTimer struct {
	taskType string
	start    time.Time
}

// StartJob marks a job active and starts its timer.
func StartJob(taskType string) *JobTimer {
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	return &JobTimer{taskType: taskType, start: time.Now()}
}

// Complete records a successful job.
func (t *JobTimer) Complete() {
	t.finish()
	WorkerJobsCompleted.WithLabelValues(t.taskType).Inc()
}

// Fail records a failed job under errorCode.
func (t *JobTimer) Fail(errorCode string) {
	t.finish()
	WorkerJobsFailed.WithLabelValues(t.taskType, errorCode).Inc()
}

func (t *JobTimer) finish() {
	WorkerJobsActive.WithLabelValues(t.taskType).Dec()
	WorkerJobDuration.WithLabelValues(t.taskType).Observe(time.Since(t.start).Seconds())
}

// RecordValuation counts a computed valuation and observes its confidence.
func RecordValuation(vertical, basis string, confidence float64) {
	ValuationsComputed.WithLabelValues(vertical, basis).Inc()
	ValuationConfidence.WithLabelValues(vertical).Observe(confidence)
}
