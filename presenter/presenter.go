package presenter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/omni/bridge-node/aggregator"
	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/headerstore"
	"github.com/omni/bridge-node/logging"
	"github.com/omni/bridge-node/node"
	"github.com/omni/bridge-node/presenter/http/middleware"
	"github.com/omni/bridge-node/presenter/http/render"
)

// NodeInfo is the read-only view of a running node, see node.Node.
type NodeInfo interface {
	Status() *node.Status
	Root(chain string, start, end uint64) (common.Hash, error)
	Claims() []aggregator.Group
	Proposals(ctx context.Context, limit uint64) ([]*entity.Proposal, error)
}

type Presenter struct {
	logger logging.Logger
	node   NodeInfo
	root   chi.Router
}

func NewPresenter(logger logging.Logger, n NodeInfo) *Presenter {
	p := &Presenter{
		logger: logger,
		node:   n,
		root:   chi.NewMux(),
	}
	p.root.Use(chimiddleware.Throttle(5))
	p.root.Use(chimiddleware.RequestID)
	p.root.Use(middleware.NewLoggerMiddleware(logger))
	p.root.Use(middleware.Recoverer)
	p.root.Get("/status", p.GetStatus)
	p.root.Get("/peers", p.GetPeers)
	p.root.With(middleware.GetChainMiddleware, middleware.GetBlockRangeMiddleware).
		Get("/chains/{chain}/root", p.GetRoot)
	p.root.Get("/claims", p.GetClaims)
	p.root.With(middleware.GetLimitMiddleware).Get("/proposals", p.GetProposals)
	return p
}

func (p *Presenter) Handler() http.Handler {
	return p.root
}

// Serve listens on addr until ctx is cancelled.
func (p *Presenter) Serve(ctx context.Context, addr string) error {
	p.logger.WithField("addr", addr).Info("starting presenter service")
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.root,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			p.logger.WithError(err).Warn("can't shutdown presenter service")
		}
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (p *Presenter) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := p.node.Status()
	res := &StatusResult{
		Self:   status.Self,
		Signer: status.Signer,
		Peers:  len(status.Peers),
		Chains: make([]*ChainInfo, len(status.Chains)),
	}
	for i := range status.Chains {
		res.Chains[i] = chainStatusToInfo(&status.Chains[i])
	}
	render.JSON(w, r, http.StatusOK, res)
}

func (p *Presenter) GetPeers(w http.ResponseWriter, r *http.Request) {
	status := p.node.Status()
	peers := status.Peers
	if peers == nil {
		peers = []string{}
	}
	render.JSON(w, r, http.StatusOK, &PeersResult{Self: status.Self, Peers: peers})
}

func (p *Presenter) GetRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chain := middleware.Chain(ctx)
	rng := middleware.GetBlockRange(ctx)

	root, err := p.node.Root(chain, rng.Start, rng.End)
	switch {
	case errors.Is(err, node.ErrUnknownChain):
		render.ErrorWithStatus(w, r, http.StatusNotFound, err)
		return
	case errors.Is(err, node.ErrInvalidRange):
		render.ErrorWithStatus(w, r, http.StatusBadRequest, err)
		return
	case errors.Is(err, headerstore.ErrNotSyncedYet):
		render.ErrorWithStatus(w, r, http.StatusConflict, err)
		return
	case err != nil:
		render.Error(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, &RootResult{
		Chain: chain,
		Start: rng.Start,
		End:   rng.End,
		Root:  root,
	})
}

func (p *Presenter) GetClaims(w http.ResponseWriter, r *http.Request) {
	groups := p.node.Claims()
	res := make([]*ClaimInfo, len(groups))
	for i := range groups {
		res[i] = groupToClaimInfo(&groups[i])
	}
	render.JSON(w, r, http.StatusOK, res)
}

func (p *Presenter) GetProposals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proposals, err := p.node.Proposals(ctx, middleware.GetLimit(ctx))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	res := make([]*ProposalInfo, len(proposals))
	for i, proposal := range proposals {
		res[i] = proposalToInfo(proposal)
	}
	render.JSON(w, r, http.StatusOK, res)
}
