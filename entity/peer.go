package entity

import (
	"context"
	"time"
)

type Peer struct {
	BridgeID  string     `db:"bridge_id"`
	Address   string     `db:"address"`
	CreatedAt *time.Time `db:"created_at"`
	UpdatedAt *time.Time `db:"updated_at"`
}

type PeersRepo interface {
	// AddPeers stores the given "host:port" addresses and returns the number of previously unknown ones.
	AddPeers(ctx context.Context, bridgeID string, addrs []string) (int, error)
	FindPeers(ctx context.Context, bridgeID string) ([]string, error)
}
