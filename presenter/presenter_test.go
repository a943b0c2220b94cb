package presenter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/omni/bridge-node/aggregator"
	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/headerstore"
	"github.com/omni/bridge-node/logging"
	"github.com/omni/bridge-node/node"
	"github.com/omni/bridge-node/presenter"
)

var (
	homeAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	foreignAddr = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	signerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	testRoot    = common.HexToHash("0x1234")
)

type fakeNode struct {
	limit uint64
}

func (n *fakeNode) Status() *node.Status {
	return &node.Status{
		Self:   "127.0.0.1:7000",
		Signer: signerAddr,
		Peers:  []string{"127.0.0.1:7001", "127.0.0.1:7002"},
		Chains: []node.ChainStatus{
			{
				Name: "home", Address: homeAddr, Enabled: true, SyncedBlock: 700, LastCommitted: 512, Proposer: signerAddr,
				Pending: &aggregator.Pending{Key: aggregator.ClaimKey{Root: testRoot, Start: 513, End: 1025}, Signers: 2, Polls: 3},
			},
			{Name: "foreign", Address: foreignAddr, SyncedBlock: 1200},
		},
	}
}

func (n *fakeNode) Root(chain string, start, end uint64) (common.Hash, error) {
	switch {
	case chain != "home":
		return common.Hash{}, fmt.Errorf("chain %q: %w", chain, node.ErrUnknownChain)
	case end > 700:
		return common.Hash{}, fmt.Errorf("stored up to 700: %w", headerstore.ErrNotSyncedYet)
	case start == 13:
		return common.Hash{}, errors.New("disk failure")
	}
	return testRoot, nil
}

func (n *fakeNode) Claims() []aggregator.Group {
	return []aggregator.Group{{
		Pair:    aggregator.Pair{Chain: homeAddr, MappedChain: foreignAddr},
		Key:     aggregator.ClaimKey{Root: testRoot, Start: 1, End: 513},
		Signers: []common.Address{signerAddr},
	}}
}

func (n *fakeNode) Proposals(_ context.Context, limit uint64) ([]*entity.Proposal, error) {
	n.limit = limit
	return []*entity.Proposal{{
		BridgeID: "bridge", Chain: homeAddr, MappedChain: foreignAddr, StartBlock: 1, EndBlock: 513,
		Root: testRoot, Signers: 2, TxHash: common.HexToHash("0xfeed"), Status: entity.ProposalStatusConfirmed,
	}}, nil
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestPresenter_Status(t *testing.T) {
	t.Parallel()

	h := presenter.NewPresenter(logging.Nop(), &fakeNode{}).Handler()

	rec := get(t, h, "/status?pretty=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "\n  \"self\"")

	var res presenter.StatusResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "127.0.0.1:7000", res.Self)
	require.Equal(t, 2, res.Peers)
	require.Len(t, res.Chains, 2)
	require.Equal(t, uint64(512), res.Chains[0].LastCommitted)
	require.NotNil(t, res.Chains[0].Pending)
	require.Equal(t, uint64(1025), res.Chains[0].Pending.End)
	require.Equal(t, uint(3), res.Chains[0].Pending.Polls)
	require.Nil(t, res.Chains[1].Pending)
	require.False(t, res.Chains[1].Enabled)

	rec = get(t, h, "/peers")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"self":"127.0.0.1:7000","peers":["127.0.0.1:7001","127.0.0.1:7002"]}`, rec.Body.String())
}

func TestPresenter_Root(t *testing.T) {
	t.Parallel()

	h := presenter.NewPresenter(logging.Nop(), &fakeNode{}).Handler()

	rec := get(t, h, "/chains/home/root?start=1&end=513")
	require.Equal(t, http.StatusOK, rec.Code)
	var res presenter.RootResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, presenter.RootResult{Chain: "home", Start: 1, End: 513, Root: testRoot}, res)

	for url, code := range map[string]int{
		"/chains/home/root?start=1":            http.StatusBadRequest,
		"/chains/home/root?start=x&end=2":      http.StatusBadRequest,
		"/chains/home/root?start=10&end=2":     http.StatusBadRequest,
		"/chains/home/root?start=0&end=2":      http.StatusBadRequest,
		"/chains/other/root?start=1&end=2":     http.StatusNotFound,
		"/chains/home/root?start=1&end=1025":   http.StatusConflict,
		"/chains/home/root?start=13&end=14":    http.StatusInternalServerError,
		"/chains/home/unknown?start=13&end=14": http.StatusNotFound,
	} {
		require.Equal(t, code, get(t, h, url).Code, url)
	}
}

func TestPresenter_ClaimsAndProposals(t *testing.T) {
	t.Parallel()

	n := &fakeNode{}
	h := presenter.NewPresenter(logging.Nop(), n).Handler()

	rec := get(t, h, "/claims")
	require.Equal(t, http.StatusOK, rec.Code)
	var claims []presenter.ClaimInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claims))
	require.Len(t, claims, 1)
	require.Equal(t, []common.Address{signerAddr}, claims[0].Signers)
	require.Equal(t, uint64(513), claims[0].End)

	rec = get(t, h, "/proposals")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(20), n.limit)
	var proposals []presenter.ProposalInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proposals))
	require.Len(t, proposals, 1)
	require.Equal(t, entity.ProposalStatusConfirmed, proposals[0].Status)

	get(t, h, "/proposals?limit=5")
	require.Equal(t, uint64(5), n.limit)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/proposals?limit=0").Code)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/proposals?limit=100000").Code)
}
