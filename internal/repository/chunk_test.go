//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(hot int) []float32 {
	v := make([]float32, 1536)
	v[hot] = 1
	return v
}

func testChunk(id string, order int) domain.Chunk {
	return domain.Chunk{
		ID:                id,
		IndexName:         "my-ai",
		Namespace:         "sql",
		Text:              fmt.Sprintf("chunk %s", id),
		SourceURL:         "https://example.com/joins",
		SourceDescription: "Joins guide",
		SourceType:        "docs",
		Order:             order,
		Dialect:           "postgresql",
		Topic:             "joins",
	}
}

func TestChunkRepository_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool)

	a := testChunk("a", 0)
	a.Embedding = unitVector(0)
	b := testChunk("b", 1)
	b.Embedding = unitVector(1)
	other := testChunk("c", 0)
	other.Namespace = "other"
	other.Embedding = unitVector(0)

	require.NoError(t, repo.Upsert(ctx, []domain.Chunk{a, b, other}))

	results, err := repo.SearchByEmbedding(ctx, unitVector(0), "my-ai", "sql", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.0001)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, "Joins guide", results[0].SourceDescription)
	assert.Equal(t, "postgresql", results[0].Dialect)
}

func TestChunkRepository_SearchRespectsTopK(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool)

	var chunks []domain.Chunk
	for i := 0; i < 5; i++ {
		c := testChunk(fmt.Sprintf("c%d", i), i)
		c.Embedding = unitVector(i)
		chunks = append(chunks, c)
	}
	require.NoError(t, repo.Upsert(ctx, chunks))

	results, err := repo.SearchByEmbedding(ctx, unitVector(2), "my-ai", "sql", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "c2", results[0].ID)
}

func TestChunkRepository_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool)
	require.NoError(t, repo.Upsert(ctx, []domain.Chunk{testChunk("a", 0), testChunk("b", 1)}))

	claimed, err := repo.ClaimPending(ctx, "my-ai", "sql", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	again, err := repo.ClaimPending(ctx, "my-ai", "sql", 10)
	require.NoError(t, err)
	assert.Empty(t, again, "claimed chunks are hidden until stored or released")

	var a, b domain.Chunk
	for _, c := range claimed {
		if c.ID == "a" {
			a = c
		} else {
			b = c
		}
	}
	require.NoError(t, repo.SetEmbedding(ctx, a, unitVector(3)))
	require.NoError(t, repo.RecordEmbedFailure(ctx, b, "rate limited"))

	for attempt := 2; attempt <= MaxEmbedAttempts; attempt++ {
		claimed, err = repo.ClaimPending(ctx, "my-ai", "sql", 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1, "attempt %d", attempt)
		assert.Equal(t, "b", claimed[0].ID)
		require.NoError(t, repo.RecordEmbedFailure(ctx, claimed[0], "rate limited"))
	}

	claimed, err = repo.ClaimPending(ctx, "my-ai", "sql", 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	stats, err := repo.Stats(ctx, "my-ai", "sql")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Embedded)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(1), stats.Failed)
	assert.False(t, stats.LastUpdated.IsZero())
}

func TestChunkRepository_ClaimPendingConcurrentClaimersDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool)
	var chunks []domain.Chunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, testChunk(fmt.Sprintf("c%d", i), i))
	}
	require.NoError(t, repo.Upsert(ctx, chunks))

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimPending(ctx, "my-ai", "sql", 8)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, c := range claimed {
				seen[c.ID]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, "chunk %s claimed more than once", id)
	}
}

func TestChunkRepository_UpsertChangedTextResetsEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool)
	c := testChunk("a", 0)
	c.Embedding = unitVector(0)
	require.NoError(t, repo.Upsert(ctx, []domain.Chunk{c}))

	unchanged := testChunk("a", 0)
	require.NoError(t, repo.Upsert(ctx, []domain.Chunk{unchanged}))
	pending, err := repo.ClaimPending(ctx, "my-ai", "sql", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	changed := testChunk("a", 0)
	changed.Text = "rewritten"
	require.NoError(t, repo.Upsert(ctx, []domain.Chunk{changed}))
	pending, err = repo.ClaimPending(ctx, "my-ai", "sql", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "rewritten", pending[0].Text)
}

func TestChunkRepository_SetEmbeddingMissingChunk(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool)
	err := repo.SetEmbedding(ctx, testChunk("missing", 0), unitVector(0))
	assert.Error(t, err)
}
