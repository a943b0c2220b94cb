package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HandledMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge_node",
		Subsystem: "node",
		Name:      "handled_messages_total",
		Help:      "Gossip messages processed by the node, by type and result.",
	}, []string{"type", "result"})
	CollectedSignatures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge_node",
		Subsystem: "node",
		Name:      "collected_signatures_total",
		Help:      "Distinct verified signatures recorded for header roots.",
	}, []string{"chain"})
	Proposals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge_node",
		Subsystem: "node",
		Name:      "proposals_total",
		Help:      "Header root proposals, by final status.",
	}, []string{"chain", "status"})
	LastCommittedBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge_node",
		Subsystem: "node",
		Name:      "last_committed_block",
		Help:      "Last block of the mapped chain committed to the bridge.",
	}, []string{"chain"})
)
