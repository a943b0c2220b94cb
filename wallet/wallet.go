package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/omni/bridge-node/config"
)

var ErrNoKey = errors.New("wallet key is not configured")

type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func New(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Generate creates a wallet with a random key, used by tests and throwaway nodes.
func Generate() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("can't generate key: %w", err)
	}
	return New(key), nil
}

func FromHex(hexKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("can't parse private key: %w", err)
	}
	return New(key), nil
}

func FromKeystore(path, password string) (*Wallet, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read keystore file: %w", err)
	}
	key, err := keystore.DecryptKey(blob, password)
	if err != nil {
		return nil, fmt.Errorf("can't decrypt keystore: %w", err)
	}
	return New(key.PrivateKey), nil
}

func FromConfig(cfg *config.WalletConfig) (*Wallet, error) {
	switch {
	case cfg == nil:
		return nil, ErrNoKey
	case cfg.PrivateKey != "":
		return FromHex(cfg.PrivateKey)
	case cfg.Keystore != "":
		return FromKeystore(cfg.Keystore, cfg.Password)
	default:
		return nil, ErrNoKey
	}
}

func (w *Wallet) Address() common.Address {
	return w.address
}

// Sign signs the personal message hash of data. V of the result is 27 or 28.
func (w *Wallet) Sign(data []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(data), w.key)
	if err != nil {
		return nil, fmt.Errorf("can't sign data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (w *Wallet) SignTx(tx *types.Transaction, signer types.Signer) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, signer, w.key)
	if err != nil {
		return nil, fmt.Errorf("can't sign transaction: %w", err)
	}
	return signed, nil
}

// RecoverAddress restores the signer of the personal message hash of data.
func RecoverAddress(data, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("can't recover ecdsa signer: invalid signature length %d", len(sig))
	}
	sig = common.CopyBytes(sig)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pk, err := crypto.SigToPub(accounts.TextHash(data), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("can't recover ecdsa signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pk), nil
}
