// Package metrics declares the Prometheus instruments for the ingestion
// pipeline. They register themselves via promauto and are served from the API
// server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamvault_uploads_total",
			Help: "Upload attempts by outcome (accepted, rejected, deferred, error)",
		},
		[]string{"outcome"},
	)

	ProcessingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamvault_processing_total",
			Help: "Finished processing jobs by terminal status",
		},
		[]string{"status"},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamvault_processing_duration_seconds",
			Help:    "Wall time of one full processing job",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
	)

	TranscodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamvault_transcode_total",
			Help: "Per-rendition conversion results",
		},
		[]string{"profile", "status"},
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamvault_transcode_duration_seconds",
			Help:    "Per-rendition encoder wall time",
			Buckets: []float64{5, 15, 60, 300, 900, 1800, 3600},
		},
		[]string{"profile"},
	)

	ThumbnailFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamvault_thumbnail_fallbacks_total",
			Help: "Assets that received a synthesized placeholder thumbnail",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamvault_queue_depth",
			Help: "Pending jobs observed at the last enqueue depth check",
		},
	)

	CleanupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamvault_cleanup_failures_total",
			Help: "Artifact deletions that failed during asset teardown",
		},
		[]string{"artifact"},
	)
)
