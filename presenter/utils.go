package presenter

import (
	"github.com/omni/bridge-node/aggregator"
	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/node"
)

func chainStatusToInfo(cs *node.ChainStatus) *ChainInfo {
	info := &ChainInfo{
		Name:          cs.Name,
		Bridge:        cs.Address,
		Enabled:       cs.Enabled,
		SyncedBlock:   cs.SyncedBlock,
		LastCommitted: cs.LastCommitted,
		Proposer:      cs.Proposer,
	}
	if !cs.UpdatedAt.IsZero() {
		ts := cs.UpdatedAt
		info.UpdatedAt = &ts
	}
	if p := cs.Pending; p != nil {
		info.Pending = &PendingInfo{
			Start:   p.Key.Start,
			End:     p.Key.End,
			Root:    p.Key.Root,
			Signers: p.Signers,
			TxHash:  p.TxHash,
			Polls:   p.Polls,
		}
	}
	return info
}

func groupToClaimInfo(g *aggregator.Group) *ClaimInfo {
	return &ClaimInfo{
		Chain:       g.Pair.Chain,
		MappedChain: g.Pair.MappedChain,
		Start:       g.Key.Start,
		End:         g.Key.End,
		Root:        g.Key.Root,
		Signers:     g.Signers,
	}
}

func proposalToInfo(p *entity.Proposal) *ProposalInfo {
	return &ProposalInfo{
		Chain:       p.Chain,
		MappedChain: p.MappedChain,
		Start:       p.StartBlock,
		End:         p.EndBlock,
		Root:        p.Root,
		Signers:     p.Signers,
		TxHash:      p.TxHash,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
