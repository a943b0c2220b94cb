package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// OddPolicy decides what happens to the last node of a level with an odd number of nodes.
type OddPolicy int

const (
	// DropOdd discards the unpaired node, roots are compatible with already committed ones.
	DropOdd OddPolicy = iota
	// DuplicateOdd pairs the unpaired node with itself, so every leaf affects the root.
	DuplicateOdd
)

func ParsePolicy(s string) (OddPolicy, error) {
	switch s {
	case "", "drop":
		return DropOdd, nil
	case "duplicate":
		return DuplicateOdd, nil
	default:
		return 0, fmt.Errorf("unknown odd leaf policy %q", s)
	}
}

func (p OddPolicy) String() string {
	if p == DuplicateOdd {
		return "duplicate"
	}
	return "drop"
}

func hashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left[:], right[:])
}

// Root folds the ordered leaves pairwise with keccak256(left ‖ right) until one node is left.
// A single leaf is its own root, no leaves give the zero hash.
func Root(leaves []common.Hash, policy OddPolicy) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	level := leaves
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		if len(level)%2 == 1 && policy == DuplicateOdd {
			last := level[len(level)-1]
			next = append(next, hashPair(last, last))
		}
		level = next
	}
	return level[0]
}
