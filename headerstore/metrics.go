package headerstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncedBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge_node",
		Subsystem: "headerstore",
		Name:      "synced_block",
		Help:      "Highest block stored in the local header log.",
	}, []string{"chain"})
	FlushedChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge_node",
		Subsystem: "headerstore",
		Name:      "flushed_chunks_total",
		Help:      "Number of complete header chunks written to disk.",
	}, []string{"chain"})
	ChunkCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge_node",
		Subsystem: "headerstore",
		Name:      "chunk_cache_requests_total",
		Help:      "Header chunk reads, by cache result.",
	}, []string{"chain", "result"})
)
