package index

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/metrics"
)

// Refresher keeps a MemoryStore in sync with a snapshot Source
type Refresher struct {
	source  Source
	store   *MemoryStore
	domains []domain.Domain
	logger  *zap.Logger
}

func NewRefresher(source Source, store *MemoryStore, domains []domain.Domain, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		source:  source,
		store:   store,
		domains: domains,
		logger:  logger,
	}
}

// Load performs the startup load. Every domain must load.
func (r *Refresher) Load(ctx context.Context) error {
	for _, d := range r.domains {
		if _, err := r.refresh(ctx, d); err != nil {
			return fmt.Errorf("load %s snapshot: %w", d, err)
		}
	}
	return nil
}

// Run reloads every domain whose snapshot version changed.
// A domain that fails to reload keeps serving its previous snapshot.
func (r *Refresher) Run(ctx context.Context) error {
	var errs []error
	for _, d := range r.domains {
		reloaded, err := r.refresh(ctx, d)
		if err != nil {
			r.logger.Warn("snapshot reload failed",
				zap.String("domain", string(d)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
			continue
		}
		if reloaded {
			r.logger.Info("snapshot reloaded",
				zap.String("domain", string(d)),
				zap.String("version", r.store.Version(d)),
				zap.Int("passages", r.store.Len(d)),
			)
		}
	}
	return errors.Join(errs...)
}

func (r *Refresher) refresh(ctx context.Context, d domain.Domain) (bool, error) {
	version, err := r.source.Version(ctx, d)
	if err != nil {
		metrics.SnapshotReloadsTotal.WithLabelValues(string(d), "error").Inc()
		return false, err
	}
	if version != "" && version == r.store.Version(d) {
		return false, nil
	}

	rc, err := r.source.Open(ctx, d)
	if err != nil {
		metrics.SnapshotReloadsTotal.WithLabelValues(string(d), "error").Inc()
		return false, err
	}
	defer rc.Close()

	records, err := DecodeRecords(rc)
	if err == nil {
		err = r.store.Replace(d, version, records)
	}
	if err != nil {
		metrics.SnapshotReloadsTotal.WithLabelValues(string(d), "error").Inc()
		return false, err
	}

	metrics.SnapshotReloadsTotal.WithLabelValues(string(d), "success").Inc()
	metrics.SnapshotPassages.WithLabelValues(string(d)).Set(float64(len(records)))
	return true, nil
}
