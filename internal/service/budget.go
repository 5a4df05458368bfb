package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/lexicon"
)

const (
	DefaultMinK = 3
	DefaultMaxK = 15
)

// BudgetAllocator splits max_k across domains in proportion to keyword hits
type BudgetAllocator struct {
	lex  *lexicon.Lexicon
	minK int
	maxK int
}

// NewBudgetAllocator requires 1 <= minK <= maxK
func NewBudgetAllocator(lex *lexicon.Lexicon, minK, maxK int) (*BudgetAllocator, error) {
	if lex == nil {
		return nil, domain.NewDomainError(domain.ErrCodeConfig, "budget allocator requires a lexicon")
	}
	if minK < 1 || minK > maxK {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
			fmt.Sprintf("min_k=%d max_k=%d", minK, maxK), domain.ErrInvalidBudget)
	}
	return &BudgetAllocator{lex: lex, minK: minK, maxK: maxK}, nil
}

// Bounds returns min_k and max_k
func (a *BudgetAllocator) Bounds() (int, int) {
	return a.minK, a.maxK
}

// Scores counts non-overlapping occurrences of every term per domain
func (a *BudgetAllocator) Scores(query string) map[domain.Domain]int {
	q := strings.ToLower(query)
	scores := make(map[domain.Domain]int, len(a.lex.Domains()))
	for _, d := range a.lex.Domains() {
		score := 0
		for _, term := range a.lex.Terms(d) {
			score += strings.Count(q, term)
		}
		scores[d] = score
	}
	return scores
}

// Allocate returns a k for every lexicon domain. With no keyword hits every
// domain gets min_k; otherwise k = clamp(round(score/total*max_k), min_k, max_k).
// Rounding is half-to-even, so 7.5 becomes 8 and 2.5 becomes 2.
func (a *BudgetAllocator) Allocate(query string) domain.RetrievalBudget {
	scores := a.Scores(query)

	total := 0
	for _, s := range scores {
		total += s
	}

	budget := make(domain.RetrievalBudget, len(scores))
	for d, s := range scores {
		if total == 0 {
			budget[d] = a.minK
			continue
		}
		k := int(math.RoundToEven(float64(s) / float64(total) * float64(a.maxK)))
		budget[d] = clamp(k, a.minK, a.maxK)
	}
	return budget
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
