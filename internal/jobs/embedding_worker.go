package jobs

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultBatchSize is how many pending chunks one pass embeds.
const DefaultBatchSize = 50

// ChunkRepository defines the persistence the embedding worker needs
type ChunkRepository interface {
	// ClaimPending claims chunks that have no embedding and attempts left
	ClaimPending(ctx context.Context, indexName, namespace string, limit int) ([]domain.Chunk, error)

	// SetEmbedding stores the embedding of a chunk
	SetEmbedding(ctx context.Context, c domain.Chunk, embedding []float32) error

	// RecordEmbedFailure stores the error of a failed attempt and releases the claim
	RecordEmbedFailure(ctx context.Context, c domain.Chunk, errMsg string) error
}

// Embedder defines the interface for generating embeddings
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// BatchResult summarizes one embedding pass.
type BatchResult struct {
	Claimed  int
	Embedded int
	// Failed counts chunks whose embedding failed and was recorded.
	Failed int
	// Unsaved counts chunks whose outcome could not be written back.
	Unsaved int
}

// Progressed reports whether the pass changed the state of any chunk.
func (r BatchResult) Progressed() bool {
	return r.Embedded+r.Failed > 0
}

// EmbeddingWorker fills in missing chunk embeddings for one namespace
type EmbeddingWorker struct {
	repo      ChunkRepository
	embedder  Embedder
	indexName string
	namespace string
	batchSize int
	logger    *zap.Logger
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(repo ChunkRepository, embedder Embedder, indexName, namespace string, logger *zap.Logger) *EmbeddingWorker {
	return &EmbeddingWorker{
		repo:      repo,
		embedder:  embedder,
		indexName: indexName,
		namespace: namespace,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	_, err := w.ProcessBatch(ctx)
	return err
}

// ProcessBatch embeds one batch of claimed chunks. A zero Claimed count
// means nothing is left to do.
func (w *EmbeddingWorker) ProcessBatch(ctx context.Context) (BatchResult, error) {
	chunks, err := w.repo.ClaimPending(ctx, w.indexName, w.namespace, w.batchSize)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to claim pending chunks: %w", err)
	}

	result := BatchResult{Claimed: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}

	w.logger.Info("embedding pending chunks", zap.Int("count", len(chunks)))

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		embedded, err := w.processChunk(ctx, c)
		switch {
		case err != nil:
			result.Unsaved++
			w.logger.Error("error processing chunk", zap.String("chunk_id", c.ID), zap.Error(err))
		case embedded:
			result.Embedded++
		default:
			result.Failed++
		}
	}

	return result, nil
}

func (w *EmbeddingWorker) processChunk(ctx context.Context, c domain.Chunk) (bool, error) {
	embedding, err := w.embedder.GenerateEmbedding(ctx, c.Text)
	if err != nil {
		telemetry.EmbeddedChunks.WithLabelValues("failed").Inc()
		w.logger.Warn("chunk embedding failed", zap.String("chunk_id", c.ID), zap.Error(err))
		if recErr := w.repo.RecordEmbedFailure(ctx, c, err.Error()); recErr != nil {
			return false, fmt.Errorf("failed to record embedding failure: %w", recErr)
		}
		return false, nil
	}

	if err := w.repo.SetEmbedding(ctx, c, embedding); err != nil {
		telemetry.EmbeddedChunks.WithLabelValues("unsaved").Inc()
		return false, fmt.Errorf("failed to store embedding: %w", err)
	}

	telemetry.EmbeddedChunks.WithLabelValues("ok").Inc()
	return true, nil
}
