package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DownloadsTotal tracks finished download jobs per outcome
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidfetch_downloads_total",
			Help: "Total number of download jobs by final outcome",
		},
		[]string{"outcome"},
	)

	// StrategyAttempts tracks individual strategy attempts
	StrategyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidfetch_strategy_attempts_total",
			Help: "Total number of strategy attempts",
		},
		[]string{"strategy", "outcome"},
	)

	// AttemptDuration tracks attempt wall-clock time per strategy family
	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidfetch_attempt_duration_seconds",
			Help:    "Strategy attempt duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	// ActiveDownloads tracks downloads currently in flight
	ActiveDownloads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidfetch_active_downloads",
			Help: "Number of downloads currently running",
		},
	)

	// DiskUsagePercent tracks the download volume fill level
	DiskUsagePercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidfetch_disk_usage_percent",
			Help: "Percentage of the download volume in use",
		},
	)
)
