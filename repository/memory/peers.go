package memory

import (
	"context"
	"sync"

	"github.com/omni/bridge-node/entity"
)

type peersRepo struct {
	mu    sync.Mutex
	peers map[string][]string
	known map[string]map[string]bool
}

func NewPeersRepo() entity.PeersRepo {
	return &peersRepo{
		peers: make(map[string][]string),
		known: make(map[string]map[string]bool),
	}
}

func (r *peersRepo) AddPeers(_ context.Context, bridgeID string, addrs []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	known := r.known[bridgeID]
	if known == nil {
		known = make(map[string]bool)
		r.known[bridgeID] = known
	}
	added := 0
	for _, addr := range addrs {
		if known[addr] {
			continue
		}
		known[addr] = true
		r.peers[bridgeID] = append(r.peers[bridgeID], addr)
		added++
	}
	return added, nil
}

func (r *peersRepo) FindPeers(_ context.Context, bridgeID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.peers[bridgeID]...), nil
}
