package headerstore

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/omni/bridge-node/entity"
)

// fields per record in a log line
const recordFields = 5

func word(n uint64) []byte {
	var w [32]byte
	binary.BigEndian.PutUint64(w[24:], n)
	return w[:]
}

// HashRecord chains the record to the hash of the previous one:
// keccak256(prevHash ‖ uint256(timestamp) ‖ uint256(number) ‖ txRoot ‖ receiptsRoot).
func HashRecord(prevHash common.Hash, rec *entity.HeaderRecord) common.Hash {
	return crypto.Keccak256Hash(
		prevHash[:],
		word(rec.Timestamp),
		word(rec.Number),
		rec.TxRoot[:],
		rec.ReceiptsRoot[:],
	)
}

// NewRecord builds the next record of the log from a chain header.
func NewRecord(prevHash common.Hash, header *types.Header) entity.HeaderRecord {
	rec := entity.HeaderRecord{
		Number:       header.Number.Uint64(),
		Timestamp:    header.Time,
		TxRoot:       header.TxHash,
		ReceiptsRoot: header.ReceiptHash,
	}
	rec.Hash = HashRecord(prevHash, &rec)
	return rec
}

// encodeLine renders records as ",n,timestamp,txRoot,receiptsRoot,hash" groups terminated by a newline.
func encodeLine(recs []entity.HeaderRecord) []byte {
	var sb strings.Builder
	for i := range recs {
		rec := &recs[i]
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatUint(rec.Number, 10))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatUint(rec.Timestamp, 10))
		sb.WriteByte(',')
		sb.WriteString(rec.TxRoot.Hex())
		sb.WriteByte(',')
		sb.WriteString(rec.ReceiptsRoot.Hex())
		sb.WriteByte(',')
		sb.WriteString(rec.Hash.Hex())
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

func decodeLine(line string) ([]entity.HeaderRecord, error) {
	line = strings.TrimSuffix(line, "\n")
	parts := strings.Split(line, ",")
	if len(parts) < 1+recordFields || parts[0] != "" || (len(parts)-1)%recordFields != 0 {
		return nil, fmt.Errorf("malformed line with %d fields", len(parts))
	}
	parts = parts[1:]
	recs := make([]entity.HeaderRecord, 0, len(parts)/recordFields)
	for i := 0; i < len(parts); i += recordFields {
		var rec entity.HeaderRecord
		var err error
		if rec.Number, err = strconv.ParseUint(parts[i], 10, 64); err != nil {
			return nil, fmt.Errorf("can't parse block number: %w", err)
		}
		if rec.Timestamp, err = strconv.ParseUint(parts[i+1], 10, 64); err != nil {
			return nil, fmt.Errorf("can't parse block timestamp: %w", err)
		}
		if err = rec.TxRoot.UnmarshalText([]byte(parts[i+2])); err != nil {
			return nil, fmt.Errorf("can't parse transactions root: %w", err)
		}
		if err = rec.ReceiptsRoot.UnmarshalText([]byte(parts[i+3])); err != nil {
			return nil, fmt.Errorf("can't parse receipts root: %w", err)
		}
		if err = rec.Hash.UnmarshalText([]byte(parts[i+4])); err != nil {
			return nil, fmt.Errorf("can't parse header hash: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
