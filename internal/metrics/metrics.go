// Package metrics holds the Prometheus collectors for the publishing pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "postflow"

var (
	PostsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_processed_total",
		Help:      "Scheduled posts processed, by final status.",
	}, []string{"status"})

	PlatformOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "platform_outcomes_total",
		Help:      "Per-platform publish outcomes, by platform and result.",
	}, []string{"platform", "result"})

	ContainerPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "container_polls_total",
		Help:      "Media container status checks, by platform and observed state.",
	}, []string{"platform", "state"})

	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_runs_total",
		Help:      "Scheduler batch runs, by result.",
	}, []string{"result"})

	SchedulerRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scheduler_run_duration_seconds",
		Help:      "Wall time of one scheduler batch run.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	StaleClaimsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_claims_failed_total",
		Help:      "Posts failed because their processing claim went stale.",
	})
)
