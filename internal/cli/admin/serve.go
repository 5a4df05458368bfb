package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/nutrirag/internal/api/handlers"
	"github.com/cloo-solutions/nutrirag/internal/cache"
	"github.com/cloo-solutions/nutrirag/internal/config"
	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/index"
	"github.com/cloo-solutions/nutrirag/internal/lexicon"
	"github.com/cloo-solutions/nutrirag/internal/logger"
	"github.com/cloo-solutions/nutrirag/internal/metrics"
	"github.com/cloo-solutions/nutrirag/internal/openai"
	"github.com/cloo-solutions/nutrirag/internal/server"
	"github.com/cloo-solutions/nutrirag/internal/service"
	"github.com/cloo-solutions/nutrirag/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the query router",
		Long:  "Start the nutrirag HTTP server answering POST /query",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides NUTRIRAG_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}

	log, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: cfg.TracesSampleRate,
			Debug:            cfg.Debug,
			Logger:           log,
		})
		if err != nil {
			log.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		} else {
			defer shutdownTelemetry()
		}
	}

	metrics.Register()

	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return err
	}

	if !cfg.HasOpenAI() {
		return domain.NewDomainError(domain.ErrCodeConfig, "NUTRIRAG_OPENAI_API_KEY is required")
	}
	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		ChatModel:           cfg.ChatModel,
		Temperature:         cfg.Temperature,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})

	var embedder index.Embedder = llm
	if cfg.HasRedis() {
		store, err := cache.NewRedisStore(cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			return fmt.Errorf("failed to create embedding cache: %w", err)
		}
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			log.Warn("embedding cache unreachable, queries will embed directly", zap.Error(err))
		}
		embedder = cache.NewCachedEmbedder(llm, store, cfg.EmbeddingModel, cfg.EmbeddingCacheTTL, metrics.EmbeddingCacheTotal, log)
		log.Info("embedding cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	backend, err := openIndexBackend(ctx, cfg, lex.Domains(), log, !noMigrate && !cfg.SkipMigrations)
	if err != nil {
		return err
	}
	defer backend.Close()

	indexes := make(map[domain.Domain]service.Index, len(lex.Domains()))
	for _, d := range lex.Domains() {
		indexes[d] = index.NewVectorIndex(d, embedder, backend.store)
	}

	router, err := service.NewRouter(service.RouterConfig{
		Lexicon:           lex,
		MinK:              cfg.MinK,
		MaxK:              cfg.MaxK,
		OnNoMatch:         cfg.OnNoMatch,
		HistoryWindow:     cfg.HistoryWindow,
		DisclaimerMode:    cfg.DisclaimerMode,
		RetrievalTimeout:  cfg.RetrievalTimeout,
		GenerationTimeout: cfg.GenerationTimeout,
		Indexes:           indexes,
		Generator:         llm,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: server.NewRouter(server.RouterConfig{
			QueryHandler: handlers.NewQueryHandler(router),
			Logger:       log,
			CORSOrigins:  cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("port", cfg.Port),
			zap.String("index_backend", cfg.IndexBackend),
			zap.String("on_no_match", string(cfg.OnNoMatch)),
			zap.String("disclaimer_mode", string(cfg.DisclaimerMode)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
