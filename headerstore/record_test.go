package headerstore_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/omni/bridge-node/headerstore"
)

func TestHashRecord(t *testing.T) {
	t.Parallel()

	prev := common.HexToHash("0x01")
	header := testHeader(42)
	rec := headerstore.NewRecord(prev, header)

	require.Equal(t, uint64(42), rec.Number)
	require.Equal(t, header.Time, rec.Timestamp)
	require.Equal(t, header.TxHash, rec.TxRoot)
	require.Equal(t, header.ReceiptHash, rec.ReceiptsRoot)

	expected := crypto.Keccak256Hash(
		prev.Bytes(),
		common.LeftPadBytes(new(big.Int).SetUint64(header.Time).Bytes(), 32),
		common.LeftPadBytes(big.NewInt(42).Bytes(), 32),
		header.TxHash.Bytes(),
		header.ReceiptHash.Bytes(),
	)
	require.Equal(t, expected, rec.Hash)
	require.Equal(t, expected, headerstore.HashRecord(prev, &rec))
	require.NotEqual(t, expected, headerstore.HashRecord(common.Hash{}, &rec))
}
