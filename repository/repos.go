package repository

import (
	"github.com/omni/bridge-node/db"
	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/repository/memory"
	"github.com/omni/bridge-node/repository/postgres"
)

type Repo struct {
	Peers     entity.PeersRepo
	Proposals entity.ProposalsRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		Peers:     postgres.NewPeersRepo("peers", db),
		Proposals: postgres.NewProposalsRepo("proposals", db),
	}
}

// NewMemoryRepo is used when no database is configured, state is lost on restart.
func NewMemoryRepo() *Repo {
	return &Repo{
		Peers:     memory.NewPeersRepo(),
		Proposals: memory.NewProposalsRepo(),
	}
}
