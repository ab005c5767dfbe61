// Package metrics contains prometheus collectors of the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "plutus"

// Stage names.
const (
	StageDetect   = "detect"
	StageRank     = "rank"
	StageDispatch = "dispatch"
)

// Fallback kinds.
const (
	FallbackRecentFeed       = "recent_feed"
	FallbackHeuristicSummary = "heuristic_summary"
	FallbackCampaign         = "fallback_campaign"
	FallbackGateOpen         = "gate_fail_open"
)

var (
	// RunsTotal counts finished pipeline runs by dispatch mode.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Number of finished pipeline runs",
		},
		[]string{"mode"},
	)

	// StageDuration ...
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// FallbacksTotal counts degraded paths taken because of upstream failures.
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_fallbacks_total",
			Help:      "Number of fallbacks taken by the pipeline",
		},
		[]string{"kind"},
	)

	// ScheduledRunsSkipped counts scheduler ticks which were dropped because a run was in progress.
	ScheduledRunsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_skipped_total",
			Help:      "Number of scheduler ticks skipped while a run was in flight",
		},
	)
)

// ObserveStage records stage duration since start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Fallback ...
func Fallback(kind string) {
	FallbacksTotal.WithLabelValues(kind).Inc()
}
