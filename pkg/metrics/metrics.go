package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roadmatch_build_info",
			Help: "Build information of the roadmatch batch matcher",
		},
		[]string{"version", "commit", "date"},
	)

	TracesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadmatch_traces_total",
			Help: "Total number of traces processed",
		},
		[]string{"status"},
	)

	MatchQuality = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roadmatch_match_quality",
			Help:    "Match quality of processed traces",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roadmatch_match_duration_seconds",
			Help:    "Per-trace matching duration",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
	)

	WaypointsAdded = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roadmatch_waypoints_added",
			Help:    "Trial waypoints inserted per trace",
			Buckets: prometheus.LinearBuckets(0, 2, 11),
		},
	)
)

// Status labels for TracesTotal.
const (
	StatusMatched = "matched"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)
