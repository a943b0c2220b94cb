package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/bridge-node/db"
	"github.com/omni/bridge-node/entity"
)

type proposalsRepo struct {
	mu        sync.Mutex
	proposals []*entity.Proposal
}

func NewProposalsRepo() entity.ProposalsRepo {
	return &proposalsRepo{}
}

func (r *proposalsRepo) find(bridgeID string, txHash common.Hash) *entity.Proposal {
	for _, p := range r.proposals {
		if p.BridgeID == bridgeID && p.TxHash == txHash {
			return p
		}
	}
	return nil
}

func (r *proposalsRepo) Ensure(_ context.Context, proposal *entity.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if p := r.find(proposal.BridgeID, proposal.TxHash); p != nil {
		p.Status = proposal.Status
		p.UpdatedAt = &now
		return nil
	}
	p := *proposal
	p.ID = uint(len(r.proposals) + 1)
	p.CreatedAt = &now
	p.UpdatedAt = &now
	r.proposals = append(r.proposals, &p)
	return nil
}

func (r *proposalsRepo) UpdateStatus(_ context.Context, bridgeID string, txHash common.Hash, status entity.ProposalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.find(bridgeID, txHash)
	if p == nil {
		return db.ErrNotFound
	}
	now := time.Now()
	p.Status = status
	p.UpdatedAt = &now
	return nil
}

// FindRecent returns copies of the latest proposals, newest first.
func (r *proposalsRepo) FindRecent(_ context.Context, bridgeID string, limit uint64) ([]*entity.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]*entity.Proposal, 0, limit)
	for i := len(r.proposals) - 1; i >= 0 && uint64(len(res)) < limit; i-- {
		if r.proposals[i].BridgeID != bridgeID {
			continue
		}
		p := *r.proposals[i]
		res = append(res, &p)
	}
	return res, nil
}
