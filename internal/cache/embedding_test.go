package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (s *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_embedding_cache_total"}, []string{"result"})
}

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	inner := new(MockEmbedder)
	store := newMemStore()
	counter := newCounter()
	vec := []float32{0.25, -1.5, 3}
	inner.On("GenerateEmbedding", mock.Anything, "protein in eggs").Return(vec, nil).Once()

	c := NewCachedEmbedder(inner, store, "text-embedding-3-small", time.Hour, counter, zap.NewNop())

	got, err := c.GenerateEmbedding(context.Background(), "protein in eggs")
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	got, err = c.GenerateEmbedding(context.Background(), "protein in eggs")
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	inner.AssertNumberOfCalls(t, "GenerateEmbedding", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("hit")))
	for _, ttl := range store.ttls {
		assert.Equal(t, time.Hour, ttl)
	}
}

func TestCachedEmbedder_KeyIncludesModel(t *testing.T) {
	a := NewCachedEmbedder(nil, newMemStore(), "model-a", 0, nil, nil)
	b := NewCachedEmbedder(nil, newMemStore(), "model-b", 0, nil, nil)

	assert.NotEqual(t, a.cacheKey("oats"), b.cacheKey("oats"))
	assert.Equal(t, a.cacheKey("oats"), a.cacheKey("oats"))
	assert.Contains(t, a.cacheKey("oats"), keyPrefix)
}

func TestCachedEmbedder_StoreFailuresFallThrough(t *testing.T) {
	inner := new(MockEmbedder)
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	inner.On("GenerateEmbedding", mock.Anything, "squats").Return([]float32{1, 2}, nil).Twice()

	c := NewCachedEmbedder(inner, store, "m", time.Minute, nil, nil)

	for i := 0; i < 2; i++ {
		got, err := c.GenerateEmbedding(context.Background(), "squats")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, got)
	}
	inner.AssertExpectations(t)
}

func TestCachedEmbedder_CorruptEntryIsMiss(t *testing.T) {
	inner := new(MockEmbedder)
	store := newMemStore()
	c := NewCachedEmbedder(inner, store, "m", time.Minute, nil, nil)
	store.data[c.cacheKey("rowing")] = []byte{1, 2, 3}
	inner.On("GenerateEmbedding", mock.Anything, "rowing").Return([]float32{4}, nil).Once()

	got, err := c.GenerateEmbedding(context.Background(), "rowing")

	require.NoError(t, err)
	assert.Equal(t, []float32{4}, got)
	assert.Equal(t, encodeVector([]float32{4}), store.data[c.cacheKey("rowing")])
}

func TestCachedEmbedder_InnerErrorNotCached(t *testing.T) {
	inner := new(MockEmbedder)
	store := newMemStore()
	inner.On("GenerateEmbedding", mock.Anything, "yoga").Return(nil, errors.New("429")).Once()

	_, err := NewCachedEmbedder(inner, store, "m", time.Minute, nil, nil).GenerateEmbedding(context.Background(), "yoga")

	require.Error(t, err)
	assert.Empty(t, store.data)
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 1e-7}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeVector([]byte{0, 1, 2, 3, 4})
	assert.Error(t, err)
}
