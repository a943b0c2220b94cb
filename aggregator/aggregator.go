package aggregator

import (
	"bytes"
	"errors"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/bridge-node/entity"
)

var ErrProposalPending = errors.New("proposal is already pending")

// Pair is the bridge (Chain) the root is committed to and the chain (MappedChain) the headers come from.
type Pair struct {
	Chain       common.Address
	MappedChain common.Address
}

// ClaimKey identifies the exact claim validators signed, signatures are counted per key.
type ClaimKey struct {
	Root  common.Hash
	Start uint64
	End   uint64
}

type Candidate struct {
	Pair   Pair
	Key    ClaimKey
	Claims []entity.SignatureClaim
}

// Signatures concatenates signatures of the candidate ordered by signer.
func (c *Candidate) Signatures() []byte {
	res := make([]byte, 0, len(c.Claims)*65)
	for i := range c.Claims {
		res = append(res, c.Claims[i].Signature...)
	}
	return res
}

type Pending struct {
	Key     ClaimKey
	Signers int
	TxHash  common.Hash
	Polls   uint
}

type Group struct {
	Pair    Pair
	Key     ClaimKey
	Signers []common.Address
}

type claimSet map[common.Address]entity.SignatureClaim

// Aggregator collects verified signature claims and guards proposals, at most one
// proposal per pair is pending at any time.
type Aggregator struct {
	mu      sync.Mutex
	claims  map[Pair]map[ClaimKey]claimSet
	pending map[Pair]*Pending
}

func New() *Aggregator {
	return &Aggregator{
		claims:  make(map[Pair]map[ClaimKey]claimSet),
		pending: make(map[Pair]*Pending),
	}
}

func pairOf(c *entity.SignatureClaim) Pair {
	return Pair{Chain: c.Chain, MappedChain: c.MappedChain}
}

func keyOf(c *entity.SignatureClaim) ClaimKey {
	return ClaimKey{Root: c.Root, Start: c.Start, End: c.End}
}

// Add records the claim, it returns false if the signer already signed the same claim.
// A repeated claim replaces the stored signature without changing the count.
func (a *Aggregator) Add(claim entity.SignatureClaim) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	pair, key := pairOf(&claim), keyOf(&claim)
	groups, ok := a.claims[pair]
	if !ok {
		groups = make(map[ClaimKey]claimSet)
		a.claims[pair] = groups
	}
	set, ok := groups[key]
	if !ok {
		set = make(claimSet)
		groups[key] = set
	}
	_, seen := set[claim.Signer]
	set[claim.Signer] = claim
	return !seen
}

func (a *Aggregator) Count(pair Pair, key ClaimKey) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.claims[pair][key])
}

// Reserve picks the claim with the greatest end signed by at least threshold distinct
// signers and marks the pair as pending. It returns nil if no claim qualifies.
func (a *Aggregator) Reserve(pair Pair, threshold uint64) (*Candidate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.pending[pair]; ok {
		return nil, ErrProposalPending
	}
	if threshold == 0 {
		threshold = 1
	}
	var best *ClaimKey
	for key, set := range a.claims[pair] {
		if uint64(len(set)) < threshold {
			continue
		}
		key := key
		if best == nil || better(&key, len(set), best, len(a.claims[pair][*best])) {
			best = &key
		}
	}
	if best == nil {
		return nil, nil
	}

	set := a.claims[pair][*best]
	c := &Candidate{Pair: pair, Key: *best, Claims: make([]entity.SignatureClaim, 0, len(set))}
	for _, claim := range set {
		c.Claims = append(c.Claims, claim)
	}
	sort.Slice(c.Claims, func(i, j int) bool {
		return bytes.Compare(c.Claims[i].Signer[:], c.Claims[j].Signer[:]) < 0
	})
	a.pending[pair] = &Pending{Key: *best, Signers: len(c.Claims)}
	return c, nil
}

func better(k *ClaimKey, n int, than *ClaimKey, thanN int) bool {
	if k.End != than.End {
		return k.End > than.End
	}
	if n != thanN {
		return n > thanN
	}
	return bytes.Compare(k.Root[:], than.Root[:]) < 0
}

func (a *Aggregator) SetPendingTx(pair Pair, txHash common.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.pending[pair]; ok {
		p.TxHash = txHash
	}
}

func (a *Aggregator) Pending(pair Pair) (Pending, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[pair]
	if !ok {
		return Pending{}, false
	}
	return *p, true
}

func (a *Aggregator) IsPending(pair Pair) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[pair]
	return ok
}

// Poll counts a receipt poll of the pending proposal and returns the number of polls so far.
func (a *Aggregator) Poll(pair Pair) (uint, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[pair]
	if !ok {
		return 0, false
	}
	p.Polls++
	return p.Polls, true
}

// Confirm drops the pending proposal together with all claims of the pair.
func (a *Aggregator) Confirm(pair Pair) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, pair)
	delete(a.claims, pair)
}

// Release drops the pending proposal, collected claims are kept for a retry.
func (a *Aggregator) Release(pair Pair) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, pair)
}

// Prune drops claims that end at or below the last committed block.
func (a *Aggregator) Prune(pair Pair, lastCommitted uint64) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for key := range a.claims[pair] {
		if key.End <= lastCommitted {
			delete(a.claims[pair], key)
			removed++
		}
	}
	if len(a.claims[pair]) == 0 {
		delete(a.claims, pair)
	}
	return removed
}

// Snapshot lists every claim group with sorted signers.
func (a *Aggregator) Snapshot() []Group {
	a.mu.Lock()
	defer a.mu.Unlock()

	var res []Group
	for pair, groups := range a.claims {
		for key, set := range groups {
			g := Group{Pair: pair, Key: key, Signers: make([]common.Address, 0, len(set))}
			for signer := range set {
				g.Signers = append(g.Signers, signer)
			}
			sort.Slice(g.Signers, func(i, j int) bool {
				return bytes.Compare(g.Signers[i][:], g.Signers[j][:]) < 0
			})
			res = append(res, g)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if c := bytes.Compare(res[i].Pair.Chain[:], res[j].Pair.Chain[:]); c != 0 {
			return c < 0
		}
		if res[i].Key.End != res[j].Key.End {
			return res[i].Key.End < res[j].Key.End
		}
		return bytes.Compare(res[i].Key.Root[:], res[j].Key.Root[:]) < 0
	})
	return res
}
