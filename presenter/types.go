package presenter

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/bridge-node/entity"
)

type PendingInfo struct {
	Start   uint64      `json:"start"`
	End     uint64      `json:"end"`
	Root    common.Hash `json:"root"`
	Signers int         `json:"signers"`
	TxHash  common.Hash `json:"txHash"`
	Polls   uint        `json:"polls"`
}

type ChainInfo struct {
	Name          string         `json:"name"`
	Bridge        common.Address `json:"bridge"`
	Enabled       bool           `json:"enabled"`
	SyncedBlock   uint64         `json:"syncedBlock"`
	LastCommitted uint64         `json:"lastCommittedBlock"`
	Proposer      common.Address `json:"proposer"`
	UpdatedAt     *time.Time     `json:"updatedAt,omitempty"`
	Pending       *PendingInfo   `json:"pending,omitempty"`
}

type StatusResult struct {
	Self   string         `json:"self"`
	Signer common.Address `json:"signer"`
	Peers  int            `json:"peers"`
	Chains []*ChainInfo   `json:"chains"`
}

type PeersResult struct {
	Self  string   `json:"self"`
	Peers []string `json:"peers"`
}

type RootResult struct {
	Chain string      `json:"chain"`
	Start uint64      `json:"start"`
	End   uint64      `json:"end"`
	Root  common.Hash `json:"root"`
}

type ClaimInfo struct {
	Chain       common.Address   `json:"chain"`
	MappedChain common.Address   `json:"mappedChain"`
	Start       uint64           `json:"start"`
	End         uint64           `json:"end"`
	Root        common.Hash      `json:"root"`
	Signers     []common.Address `json:"signers"`
}

type ProposalInfo struct {
	Chain       common.Address        `json:"chain"`
	MappedChain common.Address        `json:"mappedChain"`
	Start       uint                  `json:"start"`
	End         uint                  `json:"end"`
	Root        common.Hash           `json:"root"`
	Signers     uint                  `json:"signers"`
	TxHash      common.Hash           `json:"txHash"`
	Status      entity.ProposalStatus `json:"status"`
	CreatedAt   *time.Time            `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time            `json:"updatedAt,omitempty"`
}
