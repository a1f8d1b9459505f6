// internal/common/metrics/metrics.go
package metrics

import (
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

	WorkerJobsRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_retried_total",
			Help: "Total number of job retry attempts scheduled",
		},
		[]string{"task_type"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
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

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of jobs per queue and state",
		},
		[]string{"queue", "state"},
	)

	AssetsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assets_inserted_total",
			Help: "Total number of assets inserted, by type",
		},
		[]string{"asset_type"},
	)

	AssetsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assets_skipped_total",
			Help: "Total number of assets skipped as duplicate symbols",
		},
		[]string{"asset_type"},
	)

	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_requests_total",
			Help: "External data source requests, by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	VerificationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifications_completed_total",
			Help: "Entity verifications finished, by resulting status",
		},
		[]string{"status"},
	)
)
