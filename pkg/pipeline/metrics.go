package pipeline

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/deploybot/deploybot/pkg/metrics"
)

var (
	// Most of a job is the image build and the rollout watch; the
	// latter can take up to its wait budget per check.
	jobDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "deploybot",
		Subsystem: "pipeline",
		Name:      "job_duration_seconds",
		Help:      "Duration of job execution, in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300, 600, 900, 1800},
	}, []string{metrics.LabelSuccess})

	stageDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "deploybot",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage, in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{metrics.LabelStage, metrics.LabelSuccess})

	queueLength = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "deploybot",
		Subsystem: "pipeline",
		Name:      "queue_length_count",
		Help:      "Count of jobs waiting in the queue to be run.",
	}, []string{})
)
