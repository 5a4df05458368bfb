// Package index provides the per-domain semantic indexes consulted by the router.
package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/nutrirag/internal/domain"
)

// Embedder turns query text into a vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Store runs nearest-neighbour search inside one domain's passages
type Store interface {
	Search(ctx context.Context, d domain.Domain, embedding []float32, k int) ([]domain.Passage, error)
}

// VectorIndex answers similarity searches for a single domain
type VectorIndex struct {
	domain   domain.Domain
	embedder Embedder
	store    Store
}

func NewVectorIndex(d domain.Domain, embedder Embedder, store Store) *VectorIndex {
	return &VectorIndex{domain: d, embedder: embedder, store: store}
}

// Domain returns the domain this index serves
func (i *VectorIndex) Domain() domain.Domain {
	return i.domain
}

// SimilaritySearch embeds query and returns up to k passages ordered by
// descending score. A blank query has nothing to match and returns no passages.
func (i *VectorIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	embedding, err := i.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query for %s: %w", i.domain, err)
	}

	passages, err := i.store.Search(ctx, i.domain, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", i.domain, err)
	}
	return passages, nil
}
