package admin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/nutrirag/internal/config"
	"github.com/cloo-solutions/nutrirag/internal/database"
	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/index"
	"github.com/cloo-solutions/nutrirag/internal/lexicon"
	"github.com/cloo-solutions/nutrirag/internal/logger"
	"github.com/cloo-solutions/nutrirag/internal/repository"
)

func SnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage index snapshots",
		Long:  "Publish per-domain JSONL snapshots to S3 or import them into pgvector",
	}

	cmd.AddCommand(SnapshotImportCmd())
	cmd.AddCommand(SnapshotUploadCmd())

	return cmd
}

func SnapshotImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace pgvector passages with the snapshots in a directory",
		RunE:  runSnapshotImport,
	}

	cmd.Flags().String("dir", "", "Snapshot directory (defaults to NUTRIRAG_SNAPSHOT_DIR)")
	cmd.Flags().Bool("no-migrate", false, "Skip migrations before importing")

	return cmd
}

func runSnapshotImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return domain.NewDomainError(domain.ErrCodeConfig, "NUTRIRAG_DATABASE_URL is required")
	}
	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return err
	}
	dir := snapshotDir(cmd, cfg)

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		log, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
		if err != nil {
			return err
		}
		if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsSource, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return err
	}
	defer pool.Close()

	txRunner := repository.NewTxRunner(pool)
	source := index.NewFileSource(dir)
	for _, d := range lex.Domains() {
		records, err := readRecords(ctx, source, d)
		if err != nil {
			return err
		}
		if err := txRunner.ReplaceDomain(ctx, d, records); err != nil {
			return fmt.Errorf("import %s: %w", d, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s passages\n", len(records), d)
	}
	return nil
}

func SnapshotUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Validate and upload snapshots to the configured bucket",
		RunE:  runSnapshotUpload,
	}

	cmd.Flags().String("dir", "", "Snapshot directory (defaults to NUTRIRAG_SNAPSHOT_DIR)")

	return cmd
}

func runSnapshotUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasS3() {
		return domain.NewDomainError(domain.ErrCodeConfig, "S3 endpoint and credentials are required")
	}
	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return err
	}

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return err
	}

	return uploadSnapshots(ctx, client, snapshotDir(cmd, cfg), cfg.S3Prefix, lex.Domains(), cmd.OutOrStdout())
}

type objectPutter interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error
}

// uploadSnapshots validates every domain's file before putting any of them,
// so a bad snapshot never replaces a good one halfway through.
func uploadSnapshots(ctx context.Context, objects objectPutter, dir, prefix string, domains []domain.Domain, out io.Writer) error {
	source := index.NewFileSource(dir)
	counts := make(map[domain.Domain]int, len(domains))
	for _, d := range domains {
		records, err := readRecords(ctx, source, d)
		if err != nil {
			return err
		}
		counts[d] = len(records)
	}

	for _, d := range domains {
		name := index.SnapshotName(d)
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		err = objects.PutObject(ctx, prefix+name, f, "application/x-ndjson")
		f.Close()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Uploaded %s (%d passages)\n", prefix+name, counts[d])
	}
	return nil
}

func readRecords(ctx context.Context, source index.Source, d domain.Domain) ([]index.Record, error) {
	rc, err := source.Open(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("open %s snapshot: %w", d, err)
	}
	defer rc.Close()

	records, err := index.DecodeRecords(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", d, err)
	}
	return records, nil
}

func snapshotDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return cfg.SnapshotDir
}
