package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchUsersCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plateful_notification_batch_users_total",
		Help: "Users processed by batch runs, by notification type and result.",
	}, []string{"notification_type", "result"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plateful_notification_batch_duration_seconds",
		Help:    "Wall-clock duration of batch notification runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"notification_type"})
)
