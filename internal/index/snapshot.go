package index

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/storage"
)

const (
	snapshotExt = ".jsonl"
	// maxRecordBytes bounds one JSONL line; a 3072-dim embedding fits with room to spare
	maxRecordBytes = 4 << 20
)

// Record is one line of a domain snapshot file
type Record struct {
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding"`
}

// Source locates snapshot files for each domain
type Source interface {
	// Version returns an opaque token that changes whenever the snapshot does
	Version(ctx context.Context, d domain.Domain) (string, error)
	Open(ctx context.Context, d domain.Domain) (io.ReadCloser, error)
}

// DecodeRecords reads JSONL records, skipping blank lines and records without text
func DecodeRecords(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Text == "" {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return records, nil
}

// SnapshotName returns the file name holding d's passages
func SnapshotName(d domain.Domain) string {
	return string(d) + snapshotExt
}

// FileSource reads <dir>/<domain>.jsonl from local disk
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) path(d domain.Domain) string {
	return filepath.Join(s.dir, SnapshotName(d))
}

func (s *FileSource) Version(_ context.Context, d domain.Domain) (string, error) {
	info, err := os.Stat(s.path(d))
	if err != nil {
		return "", fmt.Errorf("stat snapshot: %w", err)
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

func (s *FileSource) Open(_ context.Context, d domain.Domain) (io.ReadCloser, error) {
	f, err := os.Open(s.path(d))
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return f, nil
}

// ObjectStore is the subset of the S3 client snapshots need
type ObjectStore interface {
	HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// S3Source reads <prefix><domain>.jsonl from a bucket; the ETag is the version
type S3Source struct {
	objects ObjectStore
	prefix  string
}

func NewS3Source(objects ObjectStore, prefix string) *S3Source {
	return &S3Source{objects: objects, prefix: prefix}
}

func (s *S3Source) key(d domain.Domain) string {
	return s.prefix + SnapshotName(d)
}

func (s *S3Source) Version(ctx context.Context, d domain.Domain) (string, error) {
	meta, err := s.objects.HeadObject(ctx, s.key(d))
	if err != nil {
		return "", err
	}
	return meta.ETag, nil
}

func (s *S3Source) Open(ctx context.Context, d domain.Domain) (io.ReadCloser, error) {
	return s.objects.GetObject(ctx, s.key(d))
}
