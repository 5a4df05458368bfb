package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/index"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PassageRepository stores domain passages and runs pgvector similarity search.
type PassageRepository struct {
	db querier
}

func NewPassageRepository(db querier) *PassageRepository {
	return &PassageRepository{db: db}
}

// NewPassageRepositoryWithTx binds the repository to an open transaction
func NewPassageRepositoryWithTx(tx pgx.Tx) *PassageRepository {
	return &PassageRepository{db: tx}
}

// Search returns the k passages of d closest to embedding by cosine distance
func (r *PassageRepository) Search(ctx context.Context, d domain.Domain, embedding []float32, k int) ([]domain.Passage, error) {
	if k <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(embedding)
	rows, err := r.db.Query(ctx, `
		SELECT content, metadata, 1.0 / (1.0 + (embedding <=> $1)) AS score
		FROM passages
		WHERE domain = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vec, string(d), k,
	)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage
	for rows.Next() {
		var p domain.Passage
		if err := rows.Scan(&p.Text, &p.Metadata, &p.Score); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		passages = append(passages, p)
	}

	return passages, rows.Err()
}

// Insert appends records to d's passages
func (r *PassageRepository) Insert(ctx context.Context, d domain.Domain, records []index.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		metadata := rec.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		batch.Queue(
			`INSERT INTO passages (domain, content, metadata, embedding) VALUES ($1, $2, $3, $4)`,
			string(d), rec.Text, metadata, pgvector.NewVector(rec.Embedding),
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert passage %d: %w", i, err)
		}
	}
	return nil
}

// DeleteDomain removes every passage of d
func (r *PassageRepository) DeleteDomain(ctx context.Context, d domain.Domain) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM passages WHERE domain = $1`, string(d))
	if err != nil {
		return 0, fmt.Errorf("delete passages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns how many passages d holds
func (r *PassageRepository) Count(ctx context.Context, d domain.Domain) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM passages WHERE domain = $1`, string(d)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}
