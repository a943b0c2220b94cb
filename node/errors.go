package node

import "errors"

var (
	ErrInvalidRange       = errors.New("invalid header range")
	ErrRootMismatch       = errors.New("header root mismatch")
	ErrUnauthorizedSigner = errors.New("signer is not a staked validator")
	ErrUnknownChain       = errors.New("unknown chain")
	ErrChainRPC           = errors.New("chain rpc failure")
)
