package admin

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/index"
)

type MockObjectPutter struct {
	mock.Mock
}

func (m *MockObjectPutter) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	data, _ := io.ReadAll(body)
	return m.Called(ctx, key, string(data), contentType).Error(0)
}

var snapshotDomains = []domain.Domain{domain.DomainFood, domain.DomainActivity}

func writeSnapshots(t *testing.T, files map[domain.Domain]string) string {
	t.Helper()
	dir := t.TempDir()
	for d, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, index.SnapshotName(d)), []byte(content), 0o644))
	}
	return dir
}

func TestUploadSnapshots(t *testing.T) {
	food := `{"text":"Lentils are high in protein.","embedding":[1,0]}` + "\n"
	activity := `{"text":"Brisk walking burns calories.","embedding":[0,1]}` + "\n" +
		`{"text":"Yoga improves flexibility.","embedding":[1,1]}` + "\n"
	dir := writeSnapshots(t, map[domain.Domain]string{
		domain.DomainFood:     food,
		domain.DomainActivity: activity,
	})

	putter := new(MockObjectPutter)
	putter.On("PutObject", mock.Anything, "vectors/food.jsonl", food, "application/x-ndjson").Return(nil)
	putter.On("PutObject", mock.Anything, "vectors/activity.jsonl", activity, "application/x-ndjson").Return(nil)

	var out bytes.Buffer
	err := uploadSnapshots(context.Background(), putter, dir, "vectors/", snapshotDomains, &out)

	require.NoError(t, err)
	putter.AssertExpectations(t)
	assert.Contains(t, out.String(), "vectors/food.jsonl (1 passages)")
	assert.Contains(t, out.String(), "vectors/activity.jsonl (2 passages)")
}

func TestUploadSnapshots_InvalidFileUploadsNothing(t *testing.T) {
	dir := writeSnapshots(t, map[domain.Domain]string{
		domain.DomainFood:     `{"text":"ok","embedding":[1]}` + "\n",
		domain.DomainActivity: "not json\n",
	})
	putter := new(MockObjectPutter)

	err := uploadSnapshots(context.Background(), putter, dir, "", snapshotDomains, io.Discard)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode activity snapshot")
	putter.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadSnapshots_MissingFile(t *testing.T) {
	dir := writeSnapshots(t, map[domain.Domain]string{
		domain.DomainFood: `{"text":"ok","embedding":[1]}` + "\n",
	})

	err := uploadSnapshots(context.Background(), new(MockObjectPutter), dir, "", snapshotDomains, io.Discard)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "open activity snapshot")
}
