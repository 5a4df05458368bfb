package index

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/storage"
)

const foodSnapshot = `{"text":"Spinach is rich in iron.","embedding":[1,0]}

{"text":"","embedding":[0,1]}
{"text":"Oats contain fiber.","metadata":{"group":"1"},"embedding":[0,1]}
`

func TestDecodeRecords(t *testing.T) {
	records, err := DecodeRecords(strings.NewReader(foodSnapshot))

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Spinach is rich in iron.", records[0].Text)
	assert.Equal(t, []float32{1, 0}, records[0].Embedding)
	assert.Equal(t, "1", records[1].Metadata["group"])
}

func TestDecodeRecords_BadLine(t *testing.T) {
	_, err := DecodeRecords(strings.NewReader("{\"text\":\"ok\",\"embedding\":[1]}\nnot json\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func writeSnapshot(t *testing.T, dir string, d domain.Domain, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotName(d)), []byte(content), 0o644))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, domain.DomainFood, foodSnapshot)
	src := NewFileSource(dir)
	ctx := context.Background()

	v1, err := src.Version(ctx, domain.DomainFood)
	require.NoError(t, err)
	assert.NotEmpty(t, v1)

	rc, err := src.Open(ctx, domain.DomainFood)
	require.NoError(t, err)
	records, err := DecodeRecords(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	writeSnapshot(t, dir, domain.DomainFood, foodSnapshot+"{\"text\":\"Eggs have protein.\",\"embedding\":[1,1]}\n")
	v2, err := src.Version(ctx, domain.DomainFood)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, err = src.Version(ctx, domain.DomainActivity)
	assert.Error(t, err)
	_, err = src.Open(ctx, domain.DomainActivity)
	assert.Error(t, err)
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.ObjectMetadata), args.Error(1)
}

func (m *MockObjectStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func TestS3Source(t *testing.T) {
	objects := new(MockObjectStore)
	objects.On("HeadObject", mock.Anything, "vectors/food.jsonl").
		Return(&storage.ObjectMetadata{ETag: `"abc123"`, ContentLength: int64(len(foodSnapshot))}, nil)
	objects.On("GetObject", mock.Anything, "vectors/food.jsonl").
		Return(io.NopCloser(strings.NewReader(foodSnapshot)), nil)
	objects.On("HeadObject", mock.Anything, "vectors/activity.jsonl").
		Return(nil, errors.New("not found"))

	src := NewS3Source(objects, "vectors/")
	ctx := context.Background()

	version, err := src.Version(ctx, domain.DomainFood)
	require.NoError(t, err)
	assert.Equal(t, `"abc123"`, version)

	rc, err := src.Open(ctx, domain.DomainFood)
	require.NoError(t, err)
	records, err := DecodeRecords(rc)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = src.Version(ctx, domain.DomainActivity)
	assert.Error(t, err)
	objects.AssertExpectations(t)
}
