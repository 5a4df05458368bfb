package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/nutrirag/internal/config"
	"github.com/cloo-solutions/nutrirag/internal/database"
	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/index"
	"github.com/cloo-solutions/nutrirag/internal/jobs"
	"github.com/cloo-solutions/nutrirag/internal/repository"
	"github.com/cloo-solutions/nutrirag/internal/storage"
)

// indexBackend is the opened passage store plus whatever must be stopped on shutdown
type indexBackend struct {
	store   index.Store
	worker  *jobs.Worker
	closers []func()
}

func (b *indexBackend) Close() {
	if b.worker != nil {
		b.worker.Stop()
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openIndexBackend(ctx context.Context, cfg *config.Config, domains []domain.Domain, log *zap.Logger, migrate bool) (*indexBackend, error) {
	switch cfg.IndexBackend {
	case "pgvector":
		return openPgvector(ctx, cfg, log, migrate)
	case "memory", "":
		return openMemory(ctx, cfg, domains, log)
	default:
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, cfg.IndexBackend, domain.ErrUnknownIndexKind)
	}
}

func openPgvector(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) (*indexBackend, error) {
	if migrate {
		if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsSource, log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	log.Info("connected to database")

	return &indexBackend{
		store:   repository.NewPassageRepository(pool),
		closers: []func(){pool.Close},
	}, nil
}

func openMemory(ctx context.Context, cfg *config.Config, domains []domain.Domain, log *zap.Logger) (*indexBackend, error) {
	source, err := snapshotSource(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store := index.NewMemoryStore()
	refresher := index.NewRefresher(source, store, domains, log)
	if err := refresher.Load(ctx); err != nil {
		return nil, err
	}
	for _, d := range domains {
		log.Info("index snapshot loaded",
			zap.String("domain", string(d)),
			zap.String("version", store.Version(d)),
			zap.Int("passages", store.Len(d)),
		)
	}

	backend := &indexBackend{store: store}
	if cfg.SnapshotRefresh > 0 {
		backend.worker = jobs.NewWorker("snapshot-refresh", refresher, cfg.SnapshotRefresh, log)
		go backend.worker.Start(context.WithoutCancel(ctx))
	}
	return backend, nil
}

func snapshotSource(ctx context.Context, cfg *config.Config, log *zap.Logger) (index.Source, error) {
	if !cfg.HasS3() {
		log.Info("reading index snapshots from disk", zap.String("dir", cfg.SnapshotDir))
		return index.NewFileSource(cfg.SnapshotDir), nil
	}

	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("reading index snapshots from S3",
		zap.String("bucket", cfg.S3Bucket),
		zap.String("prefix", cfg.S3Prefix),
	)
	return index.NewS3Source(s3Client, cfg.S3Prefix), nil
}

func newS3Client(ctx context.Context, cfg *config.Config) (*storage.S3Client, error) {
	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return client, nil
}
