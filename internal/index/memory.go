package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/cloo-solutions/nutrirag/internal/domain"
)

var (
	// ErrSnapshotNotLoaded is returned when a domain has no snapshot in memory yet
	ErrSnapshotNotLoaded = errors.New("snapshot not loaded")
	// ErrDimensionMismatch is returned when vectors disagree on length
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

type memorySnapshot struct {
	version   string
	records   []Record
	norms     []float64
	dimension int
}

// MemoryStore holds one immutable snapshot per domain and swaps it whole on reload
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[domain.Domain]*memorySnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[domain.Domain]*memorySnapshot)}
}

// Replace installs records as the new snapshot for d. Searches in flight keep the old one.
func (s *MemoryStore) Replace(d domain.Domain, version string, records []Record) error {
	snap := &memorySnapshot{
		version: version,
		records: make([]Record, 0, len(records)),
		norms:   make([]float64, 0, len(records)),
	}

	for i, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %d: empty embedding", i)
		}
		if snap.dimension == 0 {
			snap.dimension = len(r.Embedding)
		} else if len(r.Embedding) != snap.dimension {
			return fmt.Errorf("record %d: %w: got %d, expected %d", i, ErrDimensionMismatch, len(r.Embedding), snap.dimension)
		}
		snap.records = append(snap.records, r)
		snap.norms = append(snap.norms, norm(r.Embedding))
	}

	s.mu.Lock()
	s.snapshots[d] = snap
	s.mu.Unlock()
	return nil
}

// Version reports the loaded snapshot version for d, or "" when none is loaded
func (s *MemoryStore) Version(d domain.Domain) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snapshots[d]; ok {
		return snap.version
	}
	return ""
}

// Len reports how many passages are loaded for d
func (s *MemoryStore) Len(d domain.Domain) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snapshots[d]; ok {
		return len(snap.records)
	}
	return 0
}

// Search ranks passages by cosine similarity to embedding
func (s *MemoryStore) Search(ctx context.Context, d domain.Domain, embedding []float32, k int) ([]domain.Passage, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[d]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", d, ErrSnapshotNotLoaded)
	}
	if k <= 0 || len(snap.records) == 0 {
		return nil, nil
	}
	if len(embedding) != snap.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(embedding), snap.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryNorm := norm(embedding)
	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(snap.records))
	for i, r := range snap.records {
		ranked[i] = scored{idx: i, score: cosine(embedding, r.Embedding, queryNorm, snap.norms[i])}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	passages := make([]domain.Passage, 0, k)
	for _, r := range ranked[:k] {
		rec := snap.records[r.idx]
		passages = append(passages, domain.Passage{
			Text:     rec.Text,
			Metadata: rec.Metadata,
			Score:    r.score,
		})
	}
	return passages, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
