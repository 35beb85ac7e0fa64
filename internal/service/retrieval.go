package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/rag"
	"github.com/cloo-solutions/sqlsherpa/internal/telemetry"
)

// DefaultTopK is the number of chunks requested per retrieval.
const DefaultTopK = 40

// VectorQuery describes one similarity search against the vector index.
type VectorQuery struct {
	Text      string
	IndexName string
	Namespace string
	TopK      int
	Fields    []string
}

// VectorIndex runs similarity searches over indexed chunks.
type VectorIndex interface {
	Search(ctx context.Context, q VectorQuery) ([]domain.Chunk, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher is the nearest-neighbour lookup of the chunk store.
type ChunkSearcher interface {
	SearchByEmbedding(ctx context.Context, embedding []float32, indexName, namespace string, topK int) ([]domain.Chunk, error)
}

// EmbeddingIndex is a VectorIndex that embeds the query text and searches the chunk store.
type EmbeddingIndex struct {
	embedder Embedder
	store    ChunkSearcher
}

func NewEmbeddingIndex(embedder Embedder, store ChunkSearcher) *EmbeddingIndex {
	return &EmbeddingIndex{embedder: embedder, store: store}
}

func (i *EmbeddingIndex) Search(ctx context.Context, q VectorQuery) ([]domain.Chunk, error) {
	embedding, err := i.embedder.GenerateEmbedding(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := i.store.SearchByEmbedding(ctx, embedding, q.IndexName, q.Namespace, q.TopK)
	if err != nil {
		return nil, err
	}

	if len(q.Fields) > 0 {
		for idx := range chunks {
			chunks[idx] = project(chunks[idx], q.Fields)
		}
	}
	return chunks, nil
}

// project clears every metadata field not named in fields.
func project(c domain.Chunk, fields []string) domain.Chunk {
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}
	out := domain.Chunk{ID: c.ID, IndexName: c.IndexName, Namespace: c.Namespace, Score: c.Score}
	if keep[domain.FieldText] {
		out.Text = c.Text
	}
	if keep[domain.FieldPreContext] {
		out.PreContext = c.PreContext
	}
	if keep[domain.FieldPostContext] {
		out.PostContext = c.PostContext
	}
	if keep[domain.FieldSourceURL] {
		out.SourceURL = c.SourceURL
	}
	if keep[domain.FieldSourceDescription] {
		out.SourceDescription = c.SourceDescription
	}
	if keep[domain.FieldSourceType] {
		out.SourceType = c.SourceType
	}
	if keep[domain.FieldOrder] {
		out.Order = c.Order
	}
	if keep[domain.FieldDialect] {
		out.Dialect = c.Dialect
	}
	if keep[domain.FieldTopic] {
		out.Topic = c.Topic
	}
	return out
}

// RetrievalConfig scopes retrieval to one index namespace.
type RetrievalConfig struct {
	IndexName string
	Namespace string
	TopK      int
}

// RetrievalService fetches and formats context for a user question.
type RetrievalService struct {
	index VectorIndex
	cfg   RetrievalConfig
}

func NewRetrievalService(index VectorIndex, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &RetrievalService{index: index, cfg: cfg}
}

// Retrieve returns the formatted context block for query, or "" when the
// index has nothing for it.
func (s *RetrievalService) Retrieve(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", domain.ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		IndexName: s.cfg.IndexName,
		Namespace: s.cfg.Namespace,
		Operation: "retrieve",
	})
	defer span.End()

	start := time.Now()
	chunks, err := s.index.Search(ctx, VectorQuery{
		Text:      query,
		IndexName: s.cfg.IndexName,
		Namespace: s.cfg.Namespace,
		TopK:      s.cfg.TopK,
		Fields:    domain.ChunkFields,
	})
	telemetry.RetrievalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, err)
	}

	return rag.BuildContext(chunks), nil
}
