package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/omni/bridge-node/aggregator"
	"github.com/omni/bridge-node/contract"
	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/headerstore"
	"github.com/omni/bridge-node/merkle"
	"github.com/omni/bridge-node/p2p"
	"github.com/omni/bridge-node/utils"
)

// CandidateRange returns the next power-of-two wide range after the last committed block.
// ok is false when the range would be narrower than threshold.
func CandidateRange(lastCommitted, highest, threshold uint64) (start, end uint64, ok bool) {
	start = lastCommitted + 1
	if highest <= start {
		return 0, 0, false
	}
	length := utils.LastPowerOfTwo(highest - start)
	if length == 0 || length < threshold {
		return 0, 0, false
	}
	return start, start + length, true
}

func (n *Node) refreshBridgeData(ctx context.Context, i int) (bridgeData, error) {
	a, b := n.chains[i], n.chains[1-i]
	last, err := a.Bridge.LastBlock(ctx, b.Address)
	if err != nil {
		return bridgeData{}, fmt.Errorf("%v: %w", err, ErrChainRPC)
	}
	proposer, err := a.Bridge.Proposer(ctx)
	if err != nil {
		return bridgeData{}, fmt.Errorf("%v: %w", err, ErrChainRPC)
	}
	data := bridgeData{LastBlock: last, Proposer: proposer, UpdatedAt: time.Now()}

	n.dataMu.Lock()
	n.data[i] = data
	n.dataMu.Unlock()
	LastCommittedBlock.WithLabelValues(a.Name).Set(float64(last))
	return data, nil
}

func (n *Node) currentData(i int) bridgeData {
	n.dataMu.RLock()
	defer n.dataMu.RUnlock()
	return n.data[i]
}

// ProposalTick refreshes the bridge data of chain i and advances its proposal lifecycle:
// a pending proposal is polled, otherwise the elected proposer requests signatures
// for the next range of the other chain's headers.
func (n *Node) ProposalTick(ctx context.Context, i int) {
	a, b := n.chains[i], n.chains[1-i]
	logger := n.logger.WithField("chain", a.Name)

	data, err := n.refreshBridgeData(ctx, i)
	if err != nil {
		logger.WithError(err).Warn("can't refresh bridge data")
		return
	}
	pair := n.pair(i)
	n.agg.Prune(pair, data.LastBlock)

	if n.agg.IsPending(pair) {
		n.pollProposal(ctx, i)
		return
	}
	if data.Proposer != n.signer.Address() || b.Store == nil {
		return
	}

	n.tryPropose(ctx, i)
	if n.agg.IsPending(pair) {
		return
	}

	start, end, ok := CandidateRange(data.LastBlock, b.Store.Height(), n.opts.ProposeThreshold)
	if !ok {
		return
	}
	logger = logger.WithFields(logrus.Fields{"start": start, "end": end})
	hashes, err := b.Store.LoadSyncedRange(start, end)
	if errors.Is(err, headerstore.ErrNotSyncedYet) {
		logger.WithError(err).Debug("headers are not synced, triggering sync")
		n.triggerSync(ctx, 1-i)
		return
	}
	if err != nil {
		logger.WithError(err).Error("can't load headers")
		return
	}
	root := merkle.Root(hashes, n.opts.MerklePolicy)
	key := aggregator.ClaimKey{Root: root, Start: start, End: end}
	if !n.shouldRequest(pair, key) {
		return
	}

	msg := &p2p.Message{
		From:    n.peers.Self(),
		Payload: p2p.SigRequest{Chain: b.Address, Start: start, End: end, Root: root},
	}
	n.markSeen(msg.ID())
	contacted := n.peers.Broadcast(msg, nil)
	logger.WithFields(logrus.Fields{
		"root":  root.Hex(),
		"peers": len(contacted),
	}).Info("requested signatures for header root")
}

// shouldRequest limits repeated SIGREQ broadcasts of the same claim to one per seen cache TTL,
// peers drop re-deliveries within that window anyway.
func (n *Node) shouldRequest(pair aggregator.Pair, key aggregator.ClaimKey) bool {
	n.dataMu.Lock()
	defer n.dataMu.Unlock()

	now := time.Now()
	if prev, ok := n.requests[pair]; ok && prev.key == key && now.Sub(prev.at) < seenCacheTTL {
		return false
	}
	n.requests[pair] = sentRequest{key: key, at: now}
	return true
}

// tryPropose submits the best claim group of chain i once it has enough signatures.
func (n *Node) tryPropose(ctx context.Context, i int) {
	a := n.chains[i]
	if n.currentData(i).Proposer != n.signer.Address() {
		return
	}
	pair := n.pair(i)
	logger := n.logger.WithField("chain", a.Name)

	threshold, err := a.Bridge.ValidatorThreshold(ctx)
	if err != nil {
		logger.WithError(err).Warn("can't get validator threshold")
		return
	}
	candidate, err := n.agg.Reserve(pair, threshold)
	if errors.Is(err, aggregator.ErrProposalPending) || candidate == nil {
		return
	}

	logger = logger.WithFields(logrus.Fields{
		"start":   candidate.Key.Start,
		"end":     candidate.Key.End,
		"root":    candidate.Key.Root.Hex(),
		"signers": len(candidate.Claims),
	})
	txHash, err := a.Bridge.ProposeRoot(ctx, candidate.Key.Root, pair.MappedChain, candidate.Key.End, candidate.Signatures(), threshold)
	if err != nil {
		n.agg.Release(pair)
		Proposals.WithLabelValues(a.Name, string(entity.ProposalStatusFailed)).Inc()
		logger.WithError(err).Error("can't propose header root")
		return
	}
	n.agg.SetPendingTx(pair, txHash)
	logger.WithField("tx_hash", txHash.Hex()).Info("proposed header root")
	n.journal(ctx, &entity.Proposal{
		BridgeID:    n.opts.BridgeID,
		Chain:       pair.Chain,
		MappedChain: pair.MappedChain,
		StartBlock:  uint(candidate.Key.Start),
		EndBlock:    uint(candidate.Key.End),
		Root:        candidate.Key.Root,
		Signers:     uint(len(candidate.Claims)),
		TxHash:      txHash,
		Status:      entity.ProposalStatusPending,
	})
}

func (n *Node) pollProposal(ctx context.Context, i int) {
	a := n.chains[i]
	pair := n.pair(i)
	pending, ok := n.agg.Pending(pair)
	if !ok || pending.TxHash == (common.Hash{}) {
		return
	}
	logger := n.logger.WithFields(logrus.Fields{
		"chain":   a.Name,
		"tx_hash": pending.TxHash.Hex(),
	})

	polls, _ := n.agg.Poll(pair)
	status, err := a.Bridge.ProposalReceipt(ctx, pending.TxHash)
	if err != nil {
		logger.WithError(err).Warn("can't get proposal receipt")
	}
	switch {
	case err == nil && status == contract.ReceiptSuccess:
		n.agg.Confirm(pair)
		logger.Info("header root proposal confirmed")
		n.finish(ctx, i, pending.TxHash, entity.ProposalStatusConfirmed)
		if _, err = n.refreshBridgeData(ctx, i); err != nil {
			logger.WithError(err).Warn("can't refresh bridge data")
		}
	case err == nil && status == contract.ReceiptFailed:
		n.agg.Release(pair)
		logger.Warn("header root proposal failed")
		n.finish(ctx, i, pending.TxHash, entity.ProposalStatusFailed)
	case polls >= n.opts.ReceiptPollLimit:
		n.agg.Release(pair)
		logger.WithField("polls", polls).Warn("header root proposal was not mined in time")
		n.finish(ctx, i, pending.TxHash, entity.ProposalStatusTimeout)
	}
}

func (n *Node) finish(ctx context.Context, i int, txHash common.Hash, status entity.ProposalStatus) {
	Proposals.WithLabelValues(n.chains[i].Name, string(status)).Inc()
	if n.proposals == nil {
		return
	}
	if err := n.proposals.UpdateStatus(ctx, n.opts.BridgeID, txHash, status); err != nil {
		n.logger.WithError(err).WithField("tx_hash", txHash.Hex()).Warn("can't update proposal status")
	}
}

func (n *Node) journal(ctx context.Context, p *entity.Proposal) {
	if n.proposals == nil {
		return
	}
	if err := n.proposals.Ensure(ctx, p); err != nil {
		n.logger.WithError(err).WithField("tx_hash", p.TxHash.Hex()).Warn("can't save proposal")
	}
}
