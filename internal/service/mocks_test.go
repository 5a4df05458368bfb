package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/nutrirag/internal/domain"
)

// MockIndex is a mock implementation of Index
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Passage), args.Error(1)
}

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// blockingIndex ignores its context and never returns until released
type blockingIndex struct {
	release chan struct{}
}

func (b *blockingIndex) SimilaritySearch(_ context.Context, _ string, _ int) ([]domain.Passage, error) {
	<-b.release
	return nil, nil
}

func passages(texts ...string) []domain.Passage {
	out := make([]domain.Passage, len(texts))
	for i, t := range texts {
		out[i] = domain.Passage{Text: t, Score: 1}
	}
	return out
}
