package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/sqlsherpa/internal/config"
	"github.com/cloo-solutions/sqlsherpa/internal/database"
	"github.com/cloo-solutions/sqlsherpa/internal/logging"
	llm "github.com/cloo-solutions/sqlsherpa/internal/openai"
	"github.com/cloo-solutions/sqlsherpa/internal/repository"
	"github.com/cloo-solutions/sqlsherpa/internal/service"
	"github.com/cloo-solutions/sqlsherpa/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runtime holds the dependencies shared by the daemon commands.
type runtime struct {
	cfg        *config.Config
	logger     *zap.Logger
	pool       *pgxpool.Pool
	chunks     *repository.ChunkRepository
	api        *openai.Client
	moderation *llm.ModerationClient
	embedder   *llm.Client
}

func addMigrationFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsDir, "Directory containing SQL migrations")
}

func newRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if cmd.Flags().Lookup("no-migrate") != nil {
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			dir, _ := cmd.Flags().GetString("migrations")
			if err := database.Migrate(cfg.DatabaseURL, dir, logger); err != nil {
				_ = logger.Sync()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to database")

	llmCfg := llm.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      openai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	}

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		chunks:     repository.NewChunkRepository(pool),
		api:        llm.NewAPIClient(llmCfg),
		moderation: llm.NewModerationClient(llmCfg),
		embedder:   llm.NewClientWithConfig(llmCfg),
	}, nil
}

func (r *runtime) Close() {
	r.pool.Close()
	_ = r.logger.Sync()
}

func (r *runtime) retrieval() *service.RetrievalService {
	index := service.NewEmbeddingIndex(r.embedder, r.chunks)
	return service.NewRetrievalService(index, service.RetrievalConfig{
		IndexName: r.cfg.IndexName,
		Namespace: r.cfg.Namespace,
		TopK:      r.cfg.TopK,
	})
}

// objectStore returns nil when S3 is not configured.
func (r *runtime) objectStore(ctx context.Context) (*storage.S3Client, error) {
	if !r.cfg.HasS3() {
		return nil, nil
	}
	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        r.cfg.S3Endpoint,
		Region:          r.cfg.S3Region,
		AccessKeyID:     r.cfg.S3AccessKey,
		SecretAccessKey: r.cfg.S3SecretKey,
		Bucket:          r.cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return client, nil
}
