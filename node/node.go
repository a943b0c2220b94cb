package node

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/omni/bridge-node/aggregator"
	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/headerstore"
	"github.com/omni/bridge-node/logging"
	"github.com/omni/bridge-node/merkle"
	"github.com/omni/bridge-node/p2p"
	"github.com/omni/bridge-node/utils"
)

const (
	inboxSize    = 256
	seenCacheTTL = 30 * time.Second
	seenCacheLen = 4096
)

// Chain is one of the two watched chains. Address is the bridge contract address on
// the chain, it identifies the chain in gossip messages. Store is nil when the
// local header log could not be loaded.
type Chain struct {
	Name         string
	Address      common.Address
	Bridge       Bridge
	Source       HeaderSource
	Store        *headerstore.Store
	SyncInterval time.Duration
}

type Options struct {
	BridgeID         string
	ProposeThreshold uint64
	QueryInterval    time.Duration
	PingInterval     time.Duration
	PruneInterval    time.Duration
	ReceiptPollLimit uint
	Workers          int
	MerklePolicy     merkle.OddPolicy
}

type bridgeData struct {
	LastBlock uint64
	Proposer  common.Address
	UpdatedAt time.Time
}

type sentRequest struct {
	key aggregator.ClaimKey
	at  time.Time
}

type Node struct {
	opts      Options
	chains    [2]*Chain
	peers     Broadcaster
	signer    Signer
	agg       *aggregator.Aggregator
	proposals entity.ProposalsRepo
	logger    logging.Logger

	inbox      chan *p2p.Message
	background sync.WaitGroup

	seenMu sync.Mutex
	seen   *expirable.LRU[common.Hash, struct{}]

	dataMu   sync.RWMutex
	data     [2]bridgeData
	requests map[aggregator.Pair]sentRequest
}

func New(chains [2]*Chain, peers Broadcaster, signer Signer, proposals entity.ProposalsRepo, opts Options, logger logging.Logger) *Node {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Node{
		opts:      opts,
		chains:    chains,
		peers:     peers,
		signer:    signer,
		agg:       aggregator.New(),
		proposals: proposals,
		logger:    logger,
		inbox:     make(chan *p2p.Message, inboxSize),
		seen:      expirable.NewLRU[common.Hash, struct{}](seenCacheLen, nil, seenCacheTTL),
		requests:  make(map[aggregator.Pair]sentRequest),
	}
}

// Inbox receives decoded messages from the p2p server.
func (n *Node) Inbox() chan<- *p2p.Message {
	return n.inbox
}

// Run starts sync, proposal, peer maintenance loops and inbox workers, and blocks until ctx is cancelled.
func (n *Node) Run(ctx context.Context) {
	var wg sync.WaitGroup
	spawn := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	for i, chain := range n.chains {
		i, chain := i, chain
		// proposals to chain i commit the other chain's headers, they only need that chain's log
		spawn(func() {
			utils.RunEvery(ctx, n.opts.QueryInterval, func(ctx context.Context) { n.ProposalTick(ctx, i) })
		})
		if chain.Store == nil {
			n.logger.WithField("chain", chain.Name).Error("header log is not available, header sync is disabled")
			continue
		}
		spawn(func() {
			utils.RunEvery(ctx, chain.SyncInterval, func(ctx context.Context) { n.SyncChain(ctx, i) })
		})
	}
	spawn(func() {
		utils.RunEvery(ctx, n.opts.PruneInterval, func(context.Context) { n.peers.Prune() })
	})
	spawn(func() {
		utils.RunEvery(ctx, n.opts.PingInterval, func(context.Context) { n.peers.PingAll() })
	})
	for w := 0; w < n.opts.Workers; w++ {
		spawn(func() { n.work(ctx) })
	}

	n.logger.WithField("workers", n.opts.Workers).Info("node started")
	wg.Wait()
	n.background.Wait()
	n.logger.Info("node stopped")
}

func (n *Node) work(ctx context.Context) {
	for {
		select {
		case msg := <-n.inbox:
			n.Handle(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

// triggerSync starts an extra sync pass of chain i in the background. Passes are
// tracked so Run does not return while one is still writing the header log.
func (n *Node) triggerSync(ctx context.Context, i int) {
	if ctx.Err() != nil {
		return
	}
	n.background.Add(1)
	go func() {
		defer n.background.Done()
		n.SyncChain(ctx, i)
	}()
}

// SyncChain runs one sync pass of the chain's header log up to the current chain head.
func (n *Node) SyncChain(ctx context.Context, i int) {
	chain := n.chains[i]
	if chain.Store == nil {
		return
	}
	logger := n.logger.WithField("chain", chain.Name)
	head, err := chain.Source.BlockNumber(ctx)
	if err != nil {
		logger.WithError(err).Warn("can't get latest block number")
		return
	}
	if err = chain.Store.Sync(ctx, head, chain.Source); err != nil {
		logger.WithError(err).Error("can't sync headers")
	}
}

func (n *Node) chainIndex(addr common.Address) (int, bool) {
	for i, chain := range n.chains {
		if chain.Address == addr {
			return i, true
		}
	}
	return 0, false
}

func (n *Node) pair(i int) aggregator.Pair {
	return aggregator.Pair{Chain: n.chains[i].Address, MappedChain: n.chains[1-i].Address}
}

// markSeen returns false if the message id was already seen recently.
func (n *Node) markSeen(id common.Hash) bool {
	n.seenMu.Lock()
	defer n.seenMu.Unlock()
	if n.seen.Contains(id) {
		return false
	}
	n.seen.Add(id, struct{}{})
	return true
}

func (n *Node) forget(id common.Hash) {
	n.seenMu.Lock()
	defer n.seenMu.Unlock()
	n.seen.Remove(id)
}
