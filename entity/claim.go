package entity

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignatureClaim is a validator signature over the header root of [Start, End] blocks
// of MappedChain, collected for submission to the bridge on Chain.
type SignatureClaim struct {
	Chain       common.Address `json:"chain"`
	MappedChain common.Address `json:"mappedChain"`
	Start       uint64         `json:"start"`
	End         uint64         `json:"end"`
	Root        common.Hash    `json:"root"`
	Signer      common.Address `json:"signer"`
	Signature   hexutil.Bytes  `json:"signature"`
}
