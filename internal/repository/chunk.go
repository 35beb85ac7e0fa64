package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// MaxEmbedAttempts bounds how often a chunk is claimed for embedding.
const MaxEmbedAttempts = 3

// EmbedClaimLease is how long a claimed chunk is hidden from other workers.
// A claim that is neither stored nor released becomes claimable again after it.
const EmbedClaimLease = 5 * time.Minute

const chunkColumns = `id, index_name, namespace, text, pre_context, post_context, source_url,
	source_description, source_type, chunk_order, dialect, topic, created_at`

// ChunkRepository is the pgvector-backed vector index. Every query is scoped
// to one index name and namespace.
type ChunkRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool, db: pool}
}

// Upsert writes chunks in one transaction. Changed chunks lose their
// embedding so the worker re-embeds them.
func (r *ChunkRepository) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		var embedding *pgvector.Vector
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks
				(id, index_name, namespace, text, pre_context, post_context, source_url,
				 source_description, source_type, chunk_order, dialect, topic, embedding, created_at, updated_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
			 ON CONFLICT (index_name, namespace, id) DO UPDATE SET
				text = EXCLUDED.text,
				pre_context = EXCLUDED.pre_context,
				post_context = EXCLUDED.post_context,
				source_url = EXCLUDED.source_url,
				source_description = EXCLUDED.source_description,
				source_type = EXCLUDED.source_type,
				chunk_order = EXCLUDED.chunk_order,
				dialect = EXCLUDED.dialect,
				topic = EXCLUDED.topic,
				embedding = CASE
					WHEN chunks.text = EXCLUDED.text AND EXCLUDED.embedding IS NULL THEN chunks.embedding
					ELSE EXCLUDED.embedding
				END,
				embed_attempts = 0,
				embed_error = NULL,
				embed_claimed_until = NULL,
				updated_at = now()`,
			c.ID, c.IndexName, c.Namespace, c.Text, c.PreContext, c.PostContext, c.SourceURL,
			c.SourceDescription, c.SourceType, c.Order, c.Dialect, c.Topic, embedding, createdAt,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// SearchByEmbedding returns the topK nearest chunks by cosine distance.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, indexName, namespace string, topK int) ([]domain.Chunk, error) {
	if topK <= 0 {
		topK = 40
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`, 1 - (embedding <=> $1) AS score
		 FROM chunks
		 WHERE index_name = $2 AND namespace = $3 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		pgvector.NewVector(embedding), indexName, namespace, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0, topK)
	for rows.Next() {
		var c domain.Chunk
		var score float64
		if err := rows.Scan(
			&c.ID, &c.IndexName, &c.Namespace, &c.Text, &c.PreContext, &c.PostContext, &c.SourceURL,
			&c.SourceDescription, &c.SourceType, &c.Order, &c.Dialect, &c.Topic, &c.CreatedAt, &score,
		); err != nil {
			return nil, err
		}
		c.Score = float32(score)
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// ClaimPending claims up to limit chunks that still need an embedding. Each
// claim counts as an attempt, so a chunk that keeps failing, whether in the
// embedder or in the store, stops being claimed after MaxEmbedAttempts.
// Rows locked by a concurrent claimer are skipped.
func (r *ChunkRepository) ClaimPending(ctx context.Context, indexName, namespace string, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`UPDATE chunks
		 SET embed_attempts = embed_attempts + 1,
		     embed_claimed_until = now() + make_interval(secs => $5)
		 WHERE (index_name, namespace, id) IN (
			 SELECT index_name, namespace, id
			 FROM chunks
			 WHERE index_name = $1 AND namespace = $2
			   AND embedding IS NULL
			   AND embed_attempts < $3
			   AND (embed_claimed_until IS NULL OR embed_claimed_until < now())
			 ORDER BY created_at ASC
			 LIMIT $4
			 FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+chunkColumns,
		indexName, namespace, MaxEmbedAttempts, limit, EmbedClaimLease.Seconds(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(
			&c.ID, &c.IndexName, &c.Namespace, &c.Text, &c.PreContext, &c.PostContext, &c.SourceURL,
			&c.SourceDescription, &c.SourceType, &c.Order, &c.Dialect, &c.Topic, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SetEmbedding stores the embedding for one chunk.
func (r *ChunkRepository) SetEmbedding(ctx context.Context, c domain.Chunk, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE chunks SET embedding = $4, embed_error = NULL, embed_claimed_until = NULL, updated_at = now()
		 WHERE index_name = $1 AND namespace = $2 AND id = $3`,
		c.IndexName, c.Namespace, c.ID, pgvector.NewVector(embedding),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chunk %s not found", c.ID)
	}
	return nil
}

// RecordEmbedFailure stores the last error and releases the claim so the next
// batch may retry the chunk. The attempt was counted when it was claimed.
func (r *ChunkRepository) RecordEmbedFailure(ctx context.Context, c domain.Chunk, errMsg string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE chunks SET embed_error = $4, embed_claimed_until = NULL, updated_at = now()
		 WHERE index_name = $1 AND namespace = $2 AND id = $3`,
		c.IndexName, c.Namespace, c.ID, nullableString(errMsg),
	)
	return err
}

// Stats reports how many chunks of a namespace are embedded, pending and failed.
func (r *ChunkRepository) Stats(ctx context.Context, indexName, namespace string) (ChunkStats, error) {
	var stats ChunkStats
	var lastUpdated pgtype.Timestamptz
	err := r.db.QueryRow(ctx,
		`SELECT
			count(*) FILTER (WHERE embedding IS NOT NULL),
			count(*) FILTER (WHERE embedding IS NULL AND embed_attempts < $3),
			count(*) FILTER (WHERE embedding IS NULL AND embed_attempts >= $3),
			max(updated_at)
		 FROM chunks WHERE index_name = $1 AND namespace = $2`,
		indexName, namespace, MaxEmbedAttempts,
	).Scan(&stats.Embedded, &stats.Pending, &stats.Failed, &lastUpdated)
	if err != nil {
		return ChunkStats{}, err
	}
	if lastUpdated.Valid {
		stats.LastUpdated = lastUpdated.Time
	}
	return stats, nil
}

// ChunkStats summarizes one namespace of the index.
type ChunkStats struct {
	Embedded    int64
	Pending     int64
	Failed      int64
	LastUpdated time.Time
}
