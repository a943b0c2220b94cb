package aggregator_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/omni/bridge-node/aggregator"
	"github.com/omni/bridge-node/entity"
)

var (
	chainA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	chainB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	pair   = aggregator.Pair{Chain: chainA, MappedChain: chainB}
	rootX  = common.HexToHash("0x01")
	rootY  = common.HexToHash("0x02")
)

func claim(signer byte, root common.Hash, start, end uint64) entity.SignatureClaim {
	return entity.SignatureClaim{
		Chain:       chainA,
		MappedChain: chainB,
		Start:       start,
		End:         end,
		Root:        root,
		Signer:      common.BytesToAddress([]byte{signer}),
		Signature:   []byte{signer, signer},
	}
}

func TestAggregator_AddIsIdempotent(t *testing.T) {
	t.Parallel()

	a := aggregator.New()
	key := aggregator.ClaimKey{Root: rootX, Start: 1, End: 513}

	require.True(t, a.Add(claim(1, rootX, 1, 513)))
	require.False(t, a.Add(claim(1, rootX, 1, 513)))
	require.Equal(t, 1, a.Count(pair, key))

	c, err := a.Reserve(pair, 2)
	require.NoError(t, err)
	require.Nil(t, c)
	require.False(t, a.IsPending(pair))
}

func TestAggregator_RepeatReplacesSignature(t *testing.T) {
	t.Parallel()

	a := aggregator.New()
	key := aggregator.ClaimKey{Root: rootX, Start: 1, End: 513}

	first := claim(1, rootX, 1, 513)
	require.True(t, a.Add(first))
	second := claim(1, rootX, 1, 513)
	second.Signature = []byte{9, 9, 9}
	require.False(t, a.Add(second))
	require.Equal(t, 1, a.Count(pair, key))

	c, err := a.Reserve(pair, 1)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Len(t, c.Claims, 1)
	require.Equal(t, []byte{9, 9, 9}, c.Signatures())
}

func TestAggregator_GroupsByExactClaim(t *testing.T) {
	t.Parallel()

	a := aggregator.New()
	// same range, different roots never add up
	a.Add(claim(1, rootX, 1, 513))
	a.Add(claim(2, rootY, 1, 513))
	// same root, different range
	a.Add(claim(3, rootX, 1, 257))

	c, err := a.Reserve(pair, 2)
	require.NoError(t, err)
	require.Nil(t, c)

	a.Add(claim(3, rootX, 1, 513))
	c, err = a.Reserve(pair, 2)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, aggregator.ClaimKey{Root: rootX, Start: 1, End: 513}, c.Key)
	require.Len(t, c.Claims, 2)
	require.Equal(t, common.BytesToAddress([]byte{1}), c.Claims[0].Signer)
	require.Equal(t, common.BytesToAddress([]byte{3}), c.Claims[1].Signer)
	require.Equal(t, []byte{1, 1, 3, 3}, c.Signatures())
}

func TestAggregator_PicksGreatestEnd(t *testing.T) {
	t.Parallel()

	a := aggregator.New()
	for _, s := range []byte{1, 2, 3} {
		a.Add(claim(s, rootX, 1, 257))
	}
	for _, s := range []byte{1, 2} {
		a.Add(claim(s, rootY, 1, 513))
	}
	a.Add(claim(4, rootX, 1, 1025))

	c, err := a.Reserve(pair, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(513), c.Key.End)
	require.Equal(t, rootY, c.Key.Root)
}

func TestAggregator_SinglePending(t *testing.T) {
	t.Parallel()

	a := aggregator.New()
	for _, s := range []byte{1, 2, 3, 4} {
		a.Add(claim(s, rootX, 1, 513))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved, rejected := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := a.Reserve(pair, 2)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, aggregator.ErrProposalPending) {
				rejected++
			} else if err == nil && c != nil {
				reserved++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, reserved)
	require.Equal(t, 9, rejected)

	txHash := common.HexToHash("0xff")
	a.SetPendingTx(pair, txHash)
	p, ok := a.Pending(pair)
	require.True(t, ok)
	require.Equal(t, txHash, p.TxHash)
	require.Equal(t, 4, p.Signers)

	polls, ok := a.Poll(pair)
	require.True(t, ok)
	require.Equal(t, uint(1), polls)
	polls, _ = a.Poll(pair)
	require.Equal(t, uint(2), polls)

	// failure keeps claims for a retry
	a.Release(pair)
	require.False(t, a.IsPending(pair))
	c, err := a.Reserve(pair, 2)
	require.NoError(t, err)
	require.NotNil(t, c)

	// confirmation clears everything
	a.Confirm(pair)
	require.False(t, a.IsPending(pair))
	require.Empty(t, a.Snapshot())
	c, err = a.Reserve(pair, 1)
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestAggregator_Prune(t *testing.T) {
	t.Parallel()

	a := aggregator.New()
	a.Add(claim(1, rootX, 1, 257))
	a.Add(claim(1, rootX, 1, 513))
	a.Add(claim(2, rootY, 514, 1026))

	require.Equal(t, 2, a.Prune(pair, 513))
	groups := a.Snapshot()
	require.Len(t, groups, 1)
	require.Equal(t, uint64(1026), groups[0].Key.End)
	require.Equal(t, []common.Address{common.BytesToAddress([]byte{2})}, groups[0].Signers)
}
