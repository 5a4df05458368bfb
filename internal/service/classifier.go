package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/lexicon"
)

// Classifier maps a query to the domains whose terms it mentions
type Classifier struct {
	lex    *lexicon.Lexicon
	policy domain.OnNoMatchPolicy
}

// NewClassifier creates a classifier; an empty policy means reject
func NewClassifier(lex *lexicon.Lexicon, policy domain.OnNoMatchPolicy) (*Classifier, error) {
	if lex == nil {
		return nil, domain.NewDomainError(domain.ErrCodeConfig, "classifier requires a lexicon")
	}
	switch policy {
	case "":
		policy = domain.OnNoMatchReject
	case domain.OnNoMatchReject, domain.OnNoMatchBroaden:
	default:
		return nil, domain.NewDomainError(domain.ErrCodeConfig, fmt.Sprintf("unknown on_no_match policy %q", policy))
	}
	return &Classifier{lex: lex, policy: policy}, nil
}

// Policy returns the configured no-match policy
func (c *Classifier) Policy() domain.OnNoMatchPolicy {
	return c.policy
}

// Classify lowercases the query and selects every domain with at least one
// term occurring as a substring. Matching is not tokenized, so "fat" also
// matches "fatigue".
func (c *Classifier) Classify(query string) domain.ClassificationResult {
	q := strings.ToLower(query)

	var matched []domain.Domain
	for _, d := range c.lex.Domains() {
		for _, term := range c.lex.Terms(d) {
			if strings.Contains(q, term) {
				matched = append(matched, d)
				break
			}
		}
	}

	switch {
	case len(matched) == 1:
		return domain.Single(matched[0])
	case len(matched) > 1:
		return domain.Multi(matched...)
	case c.policy == domain.OnNoMatchBroaden:
		all := c.lex.Domains()
		if len(all) == 1 {
			return domain.Single(all[0])
		}
		return domain.Multi(all...)
	default:
		return domain.NoMatch()
	}
}
