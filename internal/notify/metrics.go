package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timelogger",
			Subsystem: "notify",
			Name:      "dispatches_total",
			Help:      "Total notification dispatches by overall status",
		},
		[]string{"overall_status"},
	)

	channelSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timelogger",
			Subsystem: "notify",
			Name:      "channel_sends_total",
			Help:      "Total per-channel notification attempts by outcome",
		},
		[]string{"channel", "status"},
	)
)
