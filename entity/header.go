package entity

import "github.com/ethereum/go-ethereum/common"

// HeaderRecord is a single block of the local header log. Hash chains the record
// to the previous one, see headerstore.HashRecord.
type HeaderRecord struct {
	Number       uint64
	Timestamp    uint64
	TxRoot       common.Hash
	ReceiptsRoot common.Hash
	Hash         common.Hash
}
