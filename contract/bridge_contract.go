package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/omni/bridge-node/contract/bridgeabi"
	"github.com/omni/bridge-node/ethclient"
)

var ErrNotEnoughSignatures = errors.New("bridge contract accepted fewer signatures than required")

type ReceiptStatus int

const (
	ReceiptPending ReceiptStatus = iota
	ReceiptSuccess
	ReceiptFailed
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptPending:
		return "pending"
	case ReceiptSuccess:
		return "success"
	default:
		return "failed"
	}
}

// BridgeContract is the bridge deployed on one chain. Transactions are sent only
// when opts are given.
type BridgeContract struct {
	*Contract
	opts *TxOpts
}

func NewBridgeContract(client ethclient.Client, addr common.Address, opts *TxOpts) *BridgeContract {
	return &BridgeContract{
		Contract: NewContract(client, addr, bridgeabi.BridgeABI),
		opts:     opts,
	}
}

// LastBlock returns the last block of fromChain covered by a committed root.
func (c *BridgeContract) LastBlock(ctx context.Context, fromChain common.Address) (uint64, error) {
	res, err := c.Call(ctx, "getLastBlock", fromChain)
	if err != nil {
		return 0, fmt.Errorf("cannot obtain last block: %w", err)
	}
	return new(big.Int).SetBytes(res).Uint64(), nil
}

func (c *BridgeContract) Proposer(ctx context.Context) (common.Address, error) {
	res, err := c.Call(ctx, "getProposer")
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot obtain proposer: %w", err)
	}
	return common.BytesToAddress(res), nil
}

func (c *BridgeContract) ValidatorThreshold(ctx context.Context) (uint64, error) {
	res, err := c.Call(ctx, "validatorThreshold")
	if err != nil {
		return 0, fmt.Errorf("cannot obtain validator threshold: %w", err)
	}
	return new(big.Int).SetBytes(res).Uint64(), nil
}

func (c *BridgeContract) Stake(ctx context.Context, validator common.Address) (*big.Int, error) {
	res, err := c.Call(ctx, "getStake", validator)
	if err != nil {
		return nil, fmt.Errorf("cannot obtain stake: %w", err)
	}
	return new(big.Int).SetBytes(res), nil
}

// CheckSignatures returns the number of signatures the bridge accepts for the root.
func (c *BridgeContract) CheckSignatures(ctx context.Context, root common.Hash, chain common.Address, end uint64, sigs []byte) (uint64, error) {
	res, err := c.Call(ctx, "checkSignatures", root, chain, new(big.Int).SetUint64(end), sigs)
	if err != nil {
		return 0, fmt.Errorf("cannot check signatures: %w", err)
	}
	return new(big.Int).SetBytes(res).Uint64(), nil
}

// ProposeRoot checks the signatures with a call first and submits the root only when
// at least threshold of them are accepted, otherwise the transaction would revert.
func (c *BridgeContract) ProposeRoot(ctx context.Context, root common.Hash, chain common.Address, end uint64, sigs []byte, threshold uint64) (common.Hash, error) {
	valid, err := c.CheckSignatures(ctx, root, chain, end, sigs)
	if err != nil {
		return common.Hash{}, err
	}
	if valid == 0 || valid < threshold {
		return common.Hash{}, fmt.Errorf("%d valid, %d required: %w", valid, threshold, ErrNotEnoughSignatures)
	}
	tx, err := c.Transact(ctx, c.opts, "proposeRoot", root, chain, new(big.Int).SetUint64(end), sigs)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot propose root: %w", err)
	}
	return tx.Hash(), nil
}

// ProposalReceipt reports success only for a mined transaction that emitted RootStored.
func (c *BridgeContract) ProposalReceipt(ctx context.Context, txHash common.Hash) (ReceiptStatus, error) {
	receipt, err := c.client.TransactionReceiptByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) || (err == nil && receipt == nil) {
		return ReceiptPending, nil
	}
	if err != nil {
		return ReceiptPending, fmt.Errorf("cannot get proposal receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ReceiptFailed, nil
	}
	for _, log := range receipt.Logs {
		if log.Address != c.address {
			continue
		}
		event, _, err := c.ParseLog(log)
		if err != nil {
			return ReceiptFailed, fmt.Errorf("cannot parse proposal receipt log: %w", err)
		}
		if event == bridgeabi.RootStored {
			return ReceiptSuccess, nil
		}
	}
	return ReceiptFailed, nil
}

// DepositStake sends stake(amount) on behalf of the transactor.
func (c *BridgeContract) DepositStake(ctx context.Context, amount *big.Int) (common.Hash, error) {
	tx, err := c.Transact(ctx, c.opts, "stake", amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot stake: %w", err)
	}
	return tx.Hash(), nil
}
