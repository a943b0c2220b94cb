package node

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/omni/bridge-node/contract"
	"github.com/omni/bridge-node/p2p"
)

// Bridge is the bridge contract deployed on one chain, see contract.BridgeContract.
type Bridge interface {
	LastBlock(ctx context.Context, fromChain common.Address) (uint64, error)
	Proposer(ctx context.Context) (common.Address, error)
	ValidatorThreshold(ctx context.Context) (uint64, error)
	Stake(ctx context.Context, validator common.Address) (*big.Int, error)
	ProposeRoot(ctx context.Context, root common.Hash, chain common.Address, end uint64, sigs []byte, threshold uint64) (common.Hash, error)
	ProposalReceipt(ctx context.Context, txHash common.Hash) (contract.ReceiptStatus, error)
}

type HeaderSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, n uint64) (*types.Header, error)
}

// Broadcaster is the gossip network, see p2p.PeerSet.
type Broadcaster interface {
	Self() string
	AddIfNew(addr string) bool
	Addresses() []string
	Broadcast(msg *p2p.Message, contacted map[string]bool) map[string]bool
	Prune() int
	PingAll()
}

type Signer interface {
	Address() common.Address
	Sign(data []byte) ([]byte, error)
}
