package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/index"
)

// TxRunner provides transactional repositories using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(passages *PassageRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(NewPassageRepositoryWithTx(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

// ReplaceDomain swaps d's passages for records in one transaction
func (r *TxRunner) ReplaceDomain(ctx context.Context, d domain.Domain, records []index.Record) error {
	return r.WithTx(ctx, func(passages *PassageRepository) error {
		if _, err := passages.DeleteDomain(ctx, d); err != nil {
			return err
		}
		return passages.Insert(ctx, d, records)
	})
}
