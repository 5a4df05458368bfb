package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/logger"
	"github.com/cloo-solutions/nutrirag/internal/metrics"
	"github.com/cloo-solutions/nutrirag/internal/telemetry"
)

// Index is a per-domain similarity search capability
type Index interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Passage, error)
}

// DomainResult is the outcome of searching one domain
type DomainResult struct {
	Domain   domain.Domain
	K        int
	Passages []domain.Passage
	Err      error
}

// Retriever queries domain indexes with a per-call deadline
type Retriever struct {
	indexes map[domain.Domain]Index
	timeout time.Duration
}

// NewRetriever creates a retriever over indexes; timeout <= 0 disables the deadline
func NewRetriever(indexes map[domain.Domain]Index, timeout time.Duration) *Retriever {
	return &Retriever{indexes: indexes, timeout: timeout}
}

// Retrieve runs one similarity search. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, d domain.Domain, query string, k int) ([]domain.Passage, error) {
	idx, ok := r.indexes[d]
	if !ok || idx == nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, fmt.Sprintf("domain %q", d), domain.ErrMissingIndex)
	}

	ctx, span := telemetry.StartSpan(ctx, "route.retrieve", telemetry.SpanAttributes{
		Domain:    string(d),
		K:         k,
		Operation: "similarity_search",
	})
	defer span.End()

	start := time.Now()
	passages, err := callWithTimeout(ctx, r.timeout, func(ctx context.Context) ([]domain.Passage, error) {
		return idx.SimilaritySearch(ctx, query, k)
	})
	metrics.RetrievalDuration.WithLabelValues(string(d)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.RetrievalRequestsTotal.WithLabelValues(string(d), "success").Inc()
	case isTimeout(err):
		metrics.RetrievalRequestsTotal.WithLabelValues(string(d), "timeout").Inc()
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalTimeout, fmt.Sprintf("%s index", d), err)
	default:
		metrics.RetrievalRequestsTotal.WithLabelValues(string(d), "error").Inc()
		span.SetError(err)
		return nil, fmt.Errorf("%s index: %w", d, err)
	}

	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

// RetrieveAll searches every domain concurrently and returns results in the
// order of domains. A failing domain is logged and reported in its result;
// an error is returned only when every domain failed or the caller's context
// ended, in which case the remaining searches are abandoned.
func (r *Retriever) RetrieveAll(ctx context.Context, query string, domains []domain.Domain, budget domain.RetrievalBudget) ([]DomainResult, error) {
	results := make([]DomainResult, len(domains))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range domains {
		i, d := i, d
		results[i] = DomainResult{Domain: d, K: budget[d]}
		g.Go(func() error {
			passages, err := r.Retrieve(gctx, d, query, budget[d])
			results[i].Passages = passages
			results[i].Err = err
			// one domain failing is tolerated, the caller going away is not
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return results, domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalTimeout, "request deadline passed during retrieval", err)
		}
		return results, fmt.Errorf("retrieval canceled: %w", err)
	}

	log := logger.FromContext(ctx)
	failed := 0
	timeouts := 0
	var causes []string
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		failed++
		if domain.CodeOf(res.Err) == domain.ErrCodeRetrievalTimeout {
			timeouts++
		}
		causes = append(causes, res.Err.Error())
		log.Warn("domain retrieval failed",
			zap.String("domain", string(res.Domain)),
			zap.Int("k", res.K),
			zap.Error(res.Err),
		)
	}

	if len(domains) == 0 || failed < len(domains) {
		return results, nil
	}

	cause := errors.New(strings.Join(causes, "; "))
	if timeouts == failed {
		return results, domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalTimeout, "all domain searches timed out", cause)
	}
	return results, domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalUnavailable, "all domain searches failed", cause)
}
