package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusConfirmed ProposalStatus = "confirmed"
	ProposalStatusFailed    ProposalStatus = "failed"
	ProposalStatusTimeout   ProposalStatus = "timeout"
)

type Proposal struct {
	ID          uint           `db:"id"`
	BridgeID    string         `db:"bridge_id"`
	Chain       common.Address `db:"chain"`
	MappedChain common.Address `db:"mapped_chain"`
	StartBlock  uint           `db:"start_block"`
	EndBlock    uint           `db:"end_block"`
	Root        common.Hash    `db:"root"`
	Signers     uint           `db:"signers"`
	TxHash      common.Hash    `db:"tx_hash"`
	Status      ProposalStatus `db:"status"`
	CreatedAt   *time.Time     `db:"created_at"`
	UpdatedAt   *time.Time     `db:"updated_at"`
}

type ProposalsRepo interface {
	Ensure(ctx context.Context, proposal *Proposal) error
	UpdateStatus(ctx context.Context, bridgeID string, txHash common.Hash, status ProposalStatus) error
	FindRecent(ctx context.Context, bridgeID string, limit uint64) ([]*Proposal, error)
}
