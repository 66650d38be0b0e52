package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ripple_online_users",
		Help: "Users with at least one live websocket connection.",
	})

	WSEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_ws_events_total",
		Help: "Inbound websocket events by name.",
	}, []string{"event"})

	WSBackpressure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ripple_ws_backpressure_total",
		Help: "Outbound frames dropped because a connection queue was full.",
	})

	NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_notification_failures_total",
		Help: "Notification writes that failed and were swallowed, by type.",
	}, []string{"type"})

	FanoutDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ripple_fanout_delivered_total",
		Help: "Per-follower notifications written by new-post fan-out.",
	})
	FanoutFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ripple_fanout_failed_total",
		Help: "Per-follower notification writes that failed during fan-out.",
	})
)

func Register() {
	prometheus.MustRegister(
		OnlineUsers,
		WSEvents, WSBackpressure,
		NotificationFailures,
		FanoutDelivered, FanoutFailed,
	)
}
