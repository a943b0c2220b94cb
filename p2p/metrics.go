package p2p

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Peers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge_node",
		Subsystem: "p2p",
		Name:      "peers",
		Help:      "Number of known outbound peer links.",
	}, []string{"bridge_id"})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge_node",
		Subsystem: "p2p",
		Name:      "messages_sent_total",
		Help:      "Frames written to peer links.",
	})
	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge_node",
		Subsystem: "p2p",
		Name:      "messages_dropped_total",
		Help:      "Frames dropped because of a full send queue.",
	})
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge_node",
		Subsystem: "p2p",
		Name:      "messages_received_total",
		Help:      "Frames received from inbound connections.",
	}, []string{"type"})
	InboundConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge_node",
		Subsystem: "p2p",
		Name:      "inbound_connections",
		Help:      "Number of open inbound connections.",
	})
)
