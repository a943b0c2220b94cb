package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/omni/bridge-node/db"
	"github.com/omni/bridge-node/entity"
)

type peersRepo basePostgresRepo

func NewPeersRepo(table string, db *db.DB) entity.PeersRepo {
	return (*peersRepo)(newBasePostgresRepo(table, db))
}

func (r *peersRepo) AddPeers(ctx context.Context, bridgeID string, addrs []string) (int, error) {
	if len(addrs) == 0 {
		return 0, nil
	}
	b := sq.Insert(r.table).Columns("bridge_id", "address")
	for _, addr := range addrs {
		b = b.Values(bridgeID, addr)
	}
	q, args, err := b.
		Suffix("ON CONFLICT (bridge_id, address) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("can't insert peers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("can't get number of inserted peers: %w", err)
	}
	return int(n), nil
}

func (r *peersRepo) FindPeers(ctx context.Context, bridgeID string) ([]string, error) {
	q, args, err := sq.Select("address").
		From(r.table).
		Where(sq.Eq{"bridge_id": bridgeID}).
		OrderBy("created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	addrs := make([]string, 0, 10)
	err = r.db.SelectContext(ctx, &addrs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get peers: %w", err)
	}
	return addrs, nil
}
