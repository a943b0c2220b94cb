package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/omni/bridge-node/contract/abi"
	"github.com/omni/bridge-node/ethclient"
)

var ErrReadOnly = errors.New("contract has no transactor")

// TxSigner is the signing capability needed to send transactions, see wallet.Wallet.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, signer types.Signer) (*types.Transaction, error)
}

type TxOpts struct {
	From     TxSigner
	GasLimit uint64
	// GasPrice is suggested by the node when nil.
	GasPrice *big.Int
}

type Contract struct {
	address common.Address
	client  ethclient.Client
	abi     abi.ABI
}

func NewContract(client ethclient.Client, addr common.Address, abi abi.ABI) *Contract {
	return &Contract{addr, client, abi}
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot encode abi calldata: %w", err)
	}
	res, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot call %s(...): %w", method, err)
	}
	return res, nil
}

// Transact signs and sends a legacy transaction calling the given method.
func (c *Contract) Transact(ctx context.Context, opts *TxOpts, method string, args ...interface{}) (*types.Transaction, error) {
	if opts == nil || opts.From == nil {
		return nil, ErrReadOnly
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot encode abi calldata: %w", err)
	}
	nonce, err := c.client.PendingNonceAt(ctx, opts.From.Address())
	if err != nil {
		return nil, fmt.Errorf("cannot get pending nonce: %w", err)
	}
	gasPrice := opts.GasPrice
	if gasPrice == nil {
		gasPrice, err = c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot get gas price: %w", err)
		}
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      opts.GasLimit,
		To:       &c.address,
		Data:     data,
	})
	signed, err := opts.From.SignTx(tx, c.client.Signer())
	if err != nil {
		return nil, err
	}
	if err = c.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("cannot send %s(...) transaction: %w", method, err)
	}
	return signed, nil
}

func (c *Contract) ParseLog(log *types.Log) (string, map[string]interface{}, error) {
	return c.abi.ParseLog(log)
}
