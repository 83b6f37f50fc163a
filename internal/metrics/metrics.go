package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker metrics
var (
	// VideosProcessed counts the total number of videos processed by outcome.
	VideosProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodflow",
			Name:      "videos_processed_total",
			Help:      "Total number of videos processed",
		},
		[]string{"status"},
	)

	// StageDuration tracks the time taken by each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vodflow",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Time taken by each pipeline stage",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	// EncodeDuration tracks the time taken to encode a single resolution.
	EncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vodflow",
			Name:      "resolution_encode_duration_seconds",
			Help:      "Time taken to encode one resolution of the ladder",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"resolution"},
	)

	// ActiveJobs tracks the number of currently processing jobs.
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vodflow",
			Name:      "active_jobs",
			Help:      "Number of currently processing jobs",
		},
	)

	// DownloadDuration tracks the time taken to fetch source videos from S3.
	DownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vodflow",
			Name:      "source_download_duration_seconds",
			Help:      "Time taken to download source videos from S3",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		},
	)

	// ThumbnailFailures counts swallowed thumbnail extraction failures.
	ThumbnailFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vodflow",
			Name:      "thumbnail_failures_total",
			Help:      "Total number of tolerated thumbnail extraction failures",
		},
	)

	// CleanupFailures counts per-resource cleanup failures.
	CleanupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodflow",
			Name:      "cleanup_failures_total",
			Help:      "Total number of best-effort cleanup failures",
		},
		[]string{"resource"},
	)
)

// API metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodflow",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// StreamRequests counts manifest and segment fetches by outcome.
	StreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodflow",
			Subsystem: "api",
			Name:      "stream_requests_total",
			Help:      "Total number of manifest and segment fetches",
		},
		[]string{"kind", "result"},
	)

	// AuthFailures counts authentication failures by type.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodflow",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)

	// UploadsInitiated counts upload initiations.
	UploadsInitiated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vodflow",
			Subsystem: "api",
			Name:      "uploads_initiated_total",
			Help:      "Total number of uploads initiated",
		},
	)

	// UploadsCompleted counts completed uploads.
	UploadsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vodflow",
			Subsystem: "api",
			Name:      "uploads_completed_total",
			Help:      "Total number of uploads completed",
		},
	)
)

// RecordSuccess records a successful video processing run.
func RecordSuccess() {
	VideosProcessed.WithLabelValues("success").Inc()
}

// RecordFailure records a failed video processing run.
func RecordFailure() {
	VideosProcessed.WithLabelValues("failed").Inc()
}
