package p2p

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/logging"
)

// PeerSet holds outbound links keyed by the advertised "host:port" of a peer.
// The node's own address is never a member.
type PeerSet struct {
	ctx         context.Context
	self        string
	bridgeID    string
	dialTimeout time.Duration
	repo        entity.PeersRepo
	logger      logging.Logger

	mu    sync.RWMutex
	links map[string]*Link
	wg    sync.WaitGroup
}

func NewPeerSet(ctx context.Context, self, bridgeID string, dialTimeout time.Duration, repo entity.PeersRepo, logger logging.Logger) *PeerSet {
	return &PeerSet{
		ctx:         ctx,
		self:        self,
		bridgeID:    bridgeID,
		dialTimeout: dialTimeout,
		repo:        repo,
		logger:      logger,
		links:       make(map[string]*Link),
	}
}

func (ps *PeerSet) Self() string {
	return ps.self
}

// AddIfNew registers a link to addr and connects it in the background.
// It returns false for known, own or malformed addresses.
func (ps *PeerSet) AddIfNew(addr string) bool {
	if addr == ps.self {
		return false
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		ps.logger.WithField("peer", addr).Debug("ignoring malformed peer address")
		return false
	}

	ps.mu.Lock()
	if _, ok := ps.links[addr]; ok {
		ps.mu.Unlock()
		return false
	}
	link := NewLink(addr, ps.dialTimeout, ps.logger)
	ps.links[addr] = link
	Peers.WithLabelValues(ps.bridgeID).Set(float64(len(ps.links)))
	ps.mu.Unlock()

	ps.wg.Add(1)
	go func() {
		defer ps.wg.Done()
		if err := link.Connect(ps.ctx); err != nil {
			ps.logger.WithError(err).WithField("peer", addr).Warn("can't connect to peer")
			return
		}
		if ps.repo == nil {
			return
		}
		if _, err := ps.repo.AddPeers(ps.ctx, ps.bridgeID, []string{addr}); err != nil {
			ps.logger.WithError(err).WithField("peer", addr).Warn("can't save peer")
		}
	}()
	return true
}

// Prune removes closed links and returns the number of removed ones.
func (ps *PeerSet) Prune() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	removed := 0
	for addr, link := range ps.links {
		if link.State() == StateClosed {
			delete(ps.links, addr)
			removed++
		}
	}
	if removed > 0 {
		ps.logger.WithField("count", removed).Info("pruned closed peer links")
	}
	Peers.WithLabelValues(ps.bridgeID).Set(float64(len(ps.links)))
	return removed
}

// Broadcast sends msg to every connected peer outside of contacted. The reached peers are
// appended to msg.Peers before encoding, the returned set is contacted plus the reached peers.
func (ps *PeerSet) Broadcast(msg *Message, contacted map[string]bool) map[string]bool {
	ps.Prune()

	res := make(map[string]bool, len(contacted)+len(msg.Peers))
	for p := range contacted {
		res[p] = true
	}
	for _, p := range msg.Peers {
		res[p] = true
	}

	ps.mu.RLock()
	targets := make([]*Link, 0, len(ps.links))
	for addr, link := range ps.links {
		if addr == ps.self || res[addr] || link.State() != StateConnected {
			continue
		}
		targets = append(targets, link)
		res[addr] = true
	}
	ps.mu.RUnlock()

	if len(targets) == 0 {
		return res
	}
	peers := make([]string, 0, len(res))
	for p := range res {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	msg.Peers = peers
	if msg.From == "" {
		msg.From = ps.self
	}

	frame, err := msg.Encode()
	if err != nil {
		ps.logger.WithError(err).Error("can't encode broadcast message")
		return res
	}
	for _, link := range targets {
		link.Send(frame)
	}
	return res
}

// PingAll announces the own address and known peers to every peer.
func (ps *PeerSet) PingAll() {
	ps.Prune()
	addrs := ps.Addresses()
	msg := &Message{From: ps.self, Peers: addrs, Payload: Ping{}}
	frame, err := msg.Encode()
	if err != nil {
		ps.logger.WithError(err).Error("can't encode ping")
		return
	}

	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, link := range ps.links {
		link.Send(frame)
	}
}

// Addresses returns sorted addresses of all known links.
func (ps *PeerSet) Addresses() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	res := make([]string, 0, len(ps.links))
	for addr := range ps.links {
		res = append(res, addr)
	}
	sort.Strings(res)
	return res
}

func (ps *PeerSet) States() map[string]LinkState {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	res := make(map[string]LinkState, len(ps.links))
	for addr, link := range ps.links {
		res[addr] = link.State()
	}
	return res
}

// Close disconnects every link and waits for background connects.
func (ps *PeerSet) Close() {
	ps.mu.Lock()
	for _, link := range ps.links {
		link.Disconnect()
	}
	ps.mu.Unlock()
	ps.wg.Wait()
}
