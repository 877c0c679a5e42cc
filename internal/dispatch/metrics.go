package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plateful_notification_dispatch_total",
		Help: "Dispatch attempts by notification type and outcome status.",
	}, []string{"notification_type", "status"})

	tokensRemovedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plateful_push_tokens_removed_total",
		Help: "Dead device tokens removed after permanent delivery failures.",
	})
)
