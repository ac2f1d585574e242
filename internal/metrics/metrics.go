package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	domainMetricsOnce sync.Once

	friendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_requests_total",
			Help: "Total number of friend request attempts",
		},
		[]string{"status"},
	)

	friendDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_decisions_total",
			Help: "Total number of friend request accept/reject/cancel attempts",
		},
		[]string{"action", "status"},
	)

	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total number of message send attempts",
		},
		[]string{"status"},
	)

	messageAcksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_acks_total",
			Help: "Total number of message status acknowledgements",
		},
		[]string{"kind"},
	)

	wsConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Number of currently registered websocket connections",
		},
	)

	wsEventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_dropped_total",
			Help: "Total number of fan-out events dropped on slow connections",
		},
		[]string{"event"},
	)
)

// RegisterDomainMetrics registers the counters above. Safe to call more than
// once; unregistered counters still count, they just are not scraped.
func RegisterDomainMetrics(reg prometheus.Registerer) {
	domainMetricsOnce.Do(func() {
		reg.MustRegister(
			friendRequestsTotal,
			friendDecisionsTotal,
			messagesSentTotal,
			messageAcksTotal,
			wsConnectionsActive,
			wsEventsDroppedTotal,
		)
	})
}

func IncFriendRequest(status string) {
	friendRequestsTotal.WithLabelValues(status).Inc()
}

func IncFriendDecision(action, status string) {
	friendDecisionsTotal.WithLabelValues(action, status).Inc()
}

func IncMessageSent(status string) {
	messagesSentTotal.WithLabelValues(status).Inc()
}

func IncMessageAck(kind string) {
	messageAcksTotal.WithLabelValues(kind).Inc()
}

func IncWSConnected() {
	wsConnectionsActive.Inc()
}

func IncWSDisconnected() {
	wsConnectionsActive.Dec()
}

func IncWSEventDropped(event string) {
	wsEventsDroppedTotal.WithLabelValues(event).Inc()
}
