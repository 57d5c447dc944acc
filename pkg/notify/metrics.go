package notify

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/deploybot/deploybot/pkg/metrics"
)

var (
	deliveries = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "deploybot",
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Count of notifications delivered, or not, to Slack.",
	}, []string{metrics.LabelState, metrics.LabelSuccess})

	deliveryDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "deploybot",
		Subsystem: "notify",
		Name:      "delivery_duration_seconds",
		Help:      "Duration of a notification delivery, including waiting for the rate limit, in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{metrics.LabelSuccess})

	queueLength = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "deploybot",
		Subsystem: "notify",
		Name:      "queue_length_count",
		Help:      "Count of notifications waiting to be delivered.",
	}, []string{})
)
