package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/omni/bridge-node/aggregator"
	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/headerstore"
	"github.com/omni/bridge-node/merkle"
	"github.com/omni/bridge-node/p2p"
	"github.com/omni/bridge-node/utils"
	"github.com/omni/bridge-node/wallet"
)

// Handle processes a single inbound gossip message. Errors are logged, never returned,
// a bad message must not affect other peers.
func (n *Node) Handle(ctx context.Context, msg *p2p.Message) {
	if msg == nil || msg.Payload == nil {
		return
	}
	msgType := string(msg.Payload.Type())
	logger := n.logger.WithFields(logrus.Fields{
		"type": msgType,
		"peer": msg.From,
	})
	if msg.From == n.peers.Self() {
		return
	}
	n.discover(msg)

	var err error
	switch p := msg.Payload.(type) {
	case p2p.Ping:
		logger.Debug("received ping")
	case p2p.PeersRequest:
		logger.Info("received peers request")
	case p2p.SigRequest:
		if !n.markSeen(msg.ID()) {
			HandledMessages.WithLabelValues(msgType, "duplicate").Inc()
			return
		}
		err = n.handleSigRequest(ctx, msg, p)
	case p2p.SigPass:
		if !n.markSeen(msg.ID()) {
			HandledMessages.WithLabelValues(msgType, "duplicate").Inc()
			return
		}
		err = n.handleSigPass(ctx, msg, p)
	}

	switch {
	case err == nil:
		HandledMessages.WithLabelValues(msgType, "ok").Inc()
	case errors.Is(err, headerstore.ErrNotSyncedYet):
		HandledMessages.WithLabelValues(msgType, "deferred").Inc()
		logger.WithError(err).Debug("deferring message until headers are synced")
	default:
		HandledMessages.WithLabelValues(msgType, "rejected").Inc()
		logger.WithError(err).Warn("rejected message")
	}
}

// discover treats the sender and every listed peer as connection candidates.
func (n *Node) discover(msg *p2p.Message) {
	if msg.From != "" {
		n.peers.AddIfNew(msg.From)
	}
	for _, addr := range msg.Peers {
		n.peers.AddIfNew(addr)
	}
}

// relay forwards a message to the peers it has not reached yet.
func (n *Node) relay(msg *p2p.Message) {
	contacted := msg.Contacted()
	contacted[msg.From] = true
	contacted[n.peers.Self()] = true
	n.peers.Broadcast(&p2p.Message{From: msg.From, Peers: msg.Peers, Payload: msg.Payload}, contacted)
}

func (n *Node) validateRequest(req *p2p.SigRequest) (int, error) {
	if req.End <= req.Start || !utils.IsPowerOfTwo(req.End-req.Start) {
		return 0, fmt.Errorf("range %d-%d: %w", req.Start, req.End, ErrInvalidRange)
	}
	i, ok := n.chainIndex(req.Chain)
	if !ok {
		return 0, fmt.Errorf("chain %s: %w", req.Chain, ErrUnknownChain)
	}
	return i, nil
}

func (n *Node) handleSigRequest(ctx context.Context, msg *p2p.Message, req p2p.SigRequest) error {
	i, err := n.validateRequest(&req)
	if err != nil {
		return err
	}
	store := n.chains[i].Store
	if store == nil {
		return fmt.Errorf("header log of %s is disabled: %w", n.chains[i].Name, ErrUnknownChain)
	}
	hashes, err := store.LoadSyncedRange(req.Start, req.End)
	if errors.Is(err, headerstore.ErrNotSyncedYet) {
		// processed again on the next re-broadcast
		n.forget(msg.ID())
		n.triggerSync(ctx, i)
		return err
	}
	if err != nil {
		return fmt.Errorf("can't load headers: %w", err)
	}
	root := merkle.Root(hashes, n.opts.MerklePolicy)
	if root != req.Root {
		return fmt.Errorf("local root %s, requested %s: %w", root.Hex(), req.Root.Hex(), ErrRootMismatch)
	}

	n.relay(msg)

	sig, err := n.signer.Sign(root.Bytes())
	if err != nil {
		return err
	}
	pass := &p2p.Message{
		From:    n.peers.Self(),
		Payload: p2p.SigPass{SigRequest: req, Sig: sig},
	}
	n.markSeen(pass.ID())
	n.peers.Broadcast(pass, nil)
	n.logger.WithFields(logrus.Fields{
		"chain": n.chains[i].Name,
		"start": req.Start,
		"end":   req.End,
		"root":  root.Hex(),
	}).Info("signed header root")
	return nil
}

// handleSigPass records a signature over headers of pass.Chain for the bridge on the other chain.
func (n *Node) handleSigPass(ctx context.Context, msg *p2p.Message, pass p2p.SigPass) error {
	mapped, err := n.validateRequest(&pass.SigRequest)
	if err != nil {
		return err
	}
	target := 1 - mapped
	a := n.chains[target]

	signer, err := wallet.RecoverAddress(pass.Root.Bytes(), pass.Sig)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrUnauthorizedSigner)
	}
	stake, err := a.Bridge.Stake(ctx, signer)
	if err != nil {
		// let a re-delivery try again
		n.forget(msg.ID())
		return fmt.Errorf("can't get stake of %s: %v: %w", signer, err, ErrChainRPC)
	}
	if stake == nil || stake.Sign() <= 0 {
		return fmt.Errorf("signer %s on %s: %w", signer, a.Name, ErrUnauthorizedSigner)
	}

	n.relay(msg)

	if signer == n.signer.Address() {
		return nil
	}
	added := n.agg.Add(entity.SignatureClaim{
		Chain:       a.Address,
		MappedChain: pass.Chain,
		Start:       pass.Start,
		End:         pass.End,
		Root:        pass.Root,
		Signer:      signer,
		Signature:   pass.Sig,
	})
	if !added {
		return nil
	}
	CollectedSignatures.WithLabelValues(a.Name).Inc()
	n.logger.WithFields(logrus.Fields{
		"chain":   a.Name,
		"start":   pass.Start,
		"end":     pass.End,
		"root":    pass.Root.Hex(),
		"signer":  signer.Hex(),
		"signers": n.agg.Count(n.pair(target), aggregator.ClaimKey{Root: pass.Root, Start: pass.Start, End: pass.End}),
	}).Info("collected signature")

	n.tryPropose(ctx, target)
	return nil
}
