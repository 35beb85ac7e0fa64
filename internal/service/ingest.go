package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"go.uber.org/zap"
)

const (
	ingestBatchSize = 100
	maxRecordBytes  = 1 << 20
	s3Scheme        = "s3://"
)

// CorpusRecord is one line of a JSONL corpus file.
type CorpusRecord struct {
	ID                string `json:"id" validate:"required"`
	Text              string `json:"text" validate:"required"`
	PreContext        string `json:"pre_context"`
	PostContext       string `json:"post_context"`
	SourceURL         string `json:"source_url" validate:"required"`
	SourceDescription string `json:"source_description"`
	SourceType        string `json:"source_type"`
	Order             int    `json:"order" validate:"gte=0"`
	Dialect           string `json:"dialect"`
	Topic             string `json:"topic"`
}

// ChunkUpserter stores chunks in the vector index.
type ChunkUpserter interface {
	Upsert(ctx context.Context, chunks []domain.Chunk) error
}

// ObjectOpener reads corpus objects from remote storage.
type ObjectOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// IngestStats summarizes one ingest run.
type IngestStats struct {
	Lines    int
	Upserted int
	Skipped  int
}

// IngestService loads corpus records into one index namespace. Embeddings
// are filled in afterwards by the embedding worker.
type IngestService struct {
	store     ChunkUpserter
	objects   ObjectOpener
	indexName string
	namespace string
	logger    *zap.Logger
}

// NewIngestService creates an IngestService. objects may be nil when no
// object storage is configured.
func NewIngestService(store ChunkUpserter, objects ObjectOpener, indexName, namespace string, logger *zap.Logger) *IngestService {
	return &IngestService{
		store:     store,
		objects:   objects,
		indexName: indexName,
		namespace: namespace,
		logger:    logger,
	}
}

// IngestLocation ingests a local file path, an s3://key object, or every
// .jsonl object under an s3://prefix/ ending in a slash.
func (s *IngestService) IngestLocation(ctx context.Context, location string) (IngestStats, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if key, ok := strings.CutPrefix(location, s3Scheme); ok {
		if s.objects == nil {
			return IngestStats{}, errors.New("object storage not configured: S3_ENDPOINT required")
		}
		if strings.HasSuffix(key, "/") {
			return s.ingestPrefix(ctx, key)
		}
		rc, err = s.objects.Open(ctx, key)
	} else {
		rc, err = os.Open(location)
	}
	if err != nil {
		return IngestStats{}, fmt.Errorf("failed to open %s: %w", location, err)
	}
	defer rc.Close()

	return s.Ingest(ctx, rc)
}

func (s *IngestService) ingestPrefix(ctx context.Context, prefix string) (IngestStats, error) {
	keys, err := s.objects.List(ctx, prefix)
	if err != nil {
		return IngestStats{}, err
	}

	var total IngestStats
	for _, key := range keys {
		if !strings.HasSuffix(key, ".jsonl") {
			continue
		}
		stats, err := s.IngestLocation(ctx, s3Scheme+key)
		total.Lines += stats.Lines
		total.Upserted += stats.Upserted
		total.Skipped += stats.Skipped
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Ingest reads JSONL records from r and upserts them in batches. Invalid
// records are logged and skipped.
func (s *IngestService) Ingest(ctx context.Context, r io.Reader) (IngestStats, error) {
	var stats IngestStats
	batch := make([]domain.Chunk, 0, ingestBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.store.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("failed to upsert batch: %w", err)
		}
		stats.Upserted += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Lines++

		chunk, err := s.parseRecord([]byte(line))
		if err != nil {
			stats.Skipped++
			s.logger.Warn("skipping corpus record", zap.Int("line", stats.Lines), zap.Error(err))
			continue
		}

		batch = append(batch, chunk)
		if len(batch) >= ingestBatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read corpus: %w", err)
	}
	if err := flush(); err != nil {
		return stats, err
	}

	s.logger.Info("corpus ingested",
		zap.String("index_name", s.indexName),
		zap.String("namespace", s.namespace),
		zap.Int("lines", stats.Lines),
		zap.Int("upserted", stats.Upserted),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (s *IngestService) parseRecord(line []byte) (domain.Chunk, error) {
	var rec CorpusRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return domain.Chunk{}, fmt.Errorf("%w: %v", domain.ErrInvalidIngestLine, err)
	}
	if err := validate.Struct(rec); err != nil {
		return domain.Chunk{}, fmt.Errorf("%w: %v", domain.ErrInvalidIngestLine, err)
	}

	chunk := domain.Chunk{
		ID:                rec.ID,
		IndexName:         s.indexName,
		Namespace:         s.namespace,
		Text:              rec.Text,
		PreContext:        rec.PreContext,
		PostContext:       rec.PostContext,
		SourceURL:         rec.SourceURL,
		SourceDescription: rec.SourceDescription,
		SourceType:        rec.SourceType,
		Order:             rec.Order,
		Dialect:           rec.Dialect,
		Topic:             rec.Topic,
	}
	if err := domain.ValidateChunk(&chunk); err != nil {
		return domain.Chunk{}, fmt.Errorf("%w: %v", domain.ErrInvalidIngestLine, err)
	}
	return chunk, nil
}
