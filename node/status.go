package node

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/bridge-node/aggregator"
	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/merkle"
)

type ChainStatus struct {
	Name          string
	Address       common.Address
	Enabled       bool
	SyncedBlock   uint64
	LastCommitted uint64
	Proposer      common.Address
	UpdatedAt     time.Time
	Pending       *aggregator.Pending
}

type Status struct {
	Self   string
	Signer common.Address
	Peers  []string
	Chains []ChainStatus
}

func (n *Node) Status() *Status {
	res := &Status{
		Self:   n.peers.Self(),
		Signer: n.signer.Address(),
		Peers:  n.peers.Addresses(),
		Chains: make([]ChainStatus, 0, len(n.chains)),
	}
	for i, chain := range n.chains {
		data := n.currentData(i)
		cs := ChainStatus{
			Name:          chain.Name,
			Address:       chain.Address,
			Enabled:       chain.Store != nil,
			LastCommitted: data.LastBlock,
			Proposer:      data.Proposer,
			UpdatedAt:     data.UpdatedAt,
		}
		if chain.Store != nil {
			cs.SyncedBlock = chain.Store.Height()
		}
		if p, ok := n.agg.Pending(n.pair(i)); ok {
			cs.Pending = &p
		}
		res.Chains = append(res.Chains, cs)
	}
	return res
}

// Root computes the header root of [start, end] blocks of the chain named name.
func (n *Node) Root(name string, start, end uint64) (common.Hash, error) {
	for _, chain := range n.chains {
		byAddress := common.IsHexAddress(name) && common.HexToAddress(name) == chain.Address
		if chain.Name != name && !byAddress {
			continue
		}
		if chain.Store == nil {
			return common.Hash{}, fmt.Errorf("header log of %s is disabled: %w", chain.Name, ErrUnknownChain)
		}
		if end < start {
			return common.Hash{}, fmt.Errorf("range %d-%d: %w", start, end, ErrInvalidRange)
		}
		hashes, err := chain.Store.LoadSyncedRange(start, end)
		if err != nil {
			return common.Hash{}, err
		}
		return merkle.Root(hashes, n.opts.MerklePolicy), nil
	}
	return common.Hash{}, fmt.Errorf("chain %q: %w", name, ErrUnknownChain)
}

func (n *Node) Claims() []aggregator.Group {
	return n.agg.Snapshot()
}

func (n *Node) Proposals(ctx context.Context, limit uint64) ([]*entity.Proposal, error) {
	if n.proposals == nil {
		return nil, nil
	}
	return n.proposals.FindRecent(ctx, n.opts.BridgeID, limit)
}
