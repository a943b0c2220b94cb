package memory_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/omni/bridge-node/db"
	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/repository/memory"
)

func TestPeersRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewPeersRepo()

	n, err := repo.AddPeers(ctx, "bridge", []string{"127.0.0.1:7000", "127.0.0.1:7001"})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = repo.AddPeers(ctx, "bridge", []string{"127.0.0.1:7001", "127.0.0.1:7002", "127.0.0.1:7002"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	peers, err := repo.FindPeers(ctx, "bridge")
	require.NoError(t, err)
	require.Equal(t, []string{"127.0.0.1:7000", "127.0.0.1:7001", "127.0.0.1:7002"}, peers)

	peers, err = repo.FindPeers(ctx, "other")
	require.NoError(t, err)
	require.Empty(t, peers)
}

func TestProposalsRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewProposalsRepo()

	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.Ensure(ctx, &entity.Proposal{
			BridgeID:   "bridge",
			StartBlock: uint(i),
			EndBlock:   uint(i + 512),
			TxHash:     common.BigToHash(big.NewInt(int64(i))),
			Status:     entity.ProposalStatusPending,
		}))
	}
	require.NoError(t, repo.Ensure(ctx, &entity.Proposal{BridgeID: "other", TxHash: common.BigToHash(big.NewInt(1))}))

	err := repo.UpdateStatus(ctx, "bridge", common.BigToHash(big.NewInt(2)), entity.ProposalStatusConfirmed)
	require.NoError(t, err)
	err = repo.UpdateStatus(ctx, "bridge", common.BigToHash(big.NewInt(4)), entity.ProposalStatusConfirmed)
	require.ErrorIs(t, err, db.ErrNotFound)

	recent, err := repo.FindRecent(ctx, "bridge", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, uint(3), recent[0].StartBlock)
	require.Equal(t, entity.ProposalStatusPending, recent[0].Status)
	require.Equal(t, uint(2), recent[1].StartBlock)
	require.Equal(t, entity.ProposalStatusConfirmed, recent[1].Status)

	recent[0].Status = entity.ProposalStatusFailed
	recent, err = repo.FindRecent(ctx, "bridge", 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, entity.ProposalStatusPending, recent[0].Status)
}
