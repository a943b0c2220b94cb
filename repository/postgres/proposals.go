package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/bridge-node/db"
	"github.com/omni/bridge-node/entity"
)

type proposalsRepo basePostgresRepo

func NewProposalsRepo(table string, db *db.DB) entity.ProposalsRepo {
	return (*proposalsRepo)(newBasePostgresRepo(table, db))
}

func (r *proposalsRepo) Ensure(ctx context.Context, p *entity.Proposal) error {
	q, args, err := sq.Insert(r.table).
		Columns("bridge_id", "chain", "mapped_chain", "start_block", "end_block", "root", "signers", "tx_hash", "status").
		Values(p.BridgeID, p.Chain, p.MappedChain, p.StartBlock, p.EndBlock, p.Root, p.Signers, p.TxHash, p.Status).
		Suffix("ON CONFLICT (bridge_id, tx_hash) DO UPDATE SET updated_at = NOW(), status = EXCLUDED.status").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert proposal: %w", err)
	}
	return nil
}

func (r *proposalsRepo) UpdateStatus(ctx context.Context, bridgeID string, txHash common.Hash, status entity.ProposalStatus) error {
	q, args, err := sq.Update(r.table).
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"bridge_id": bridgeID, "tx_hash": txHash}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't update proposal status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *proposalsRepo) FindRecent(ctx context.Context, bridgeID string, limit uint64) ([]*entity.Proposal, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"bridge_id": bridgeID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	proposals := make([]*entity.Proposal, 0, limit)
	err = r.db.SelectContext(ctx, &proposals, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get recent proposals: %w", err)
	}
	return proposals, nil
}
