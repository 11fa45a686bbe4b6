package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courier_active_connections",
		Help: "Number of websocket connections currently registered.",
	})

	MessagesRouted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_messages_routed_total",
		Help: "Messages persisted and fanned out.",
	})

	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_send_failures_total",
		Help: "Writes to a connection that failed and caused its unregistration.",
	})

	PresenceBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_presence_broadcasts_total",
		Help: "Presence transitions broadcast after debouncing.",
	})

	TypingBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_typing_broadcasts_total",
		Help: "Typing state changes broadcast, including implicit expiries.",
	})
)
