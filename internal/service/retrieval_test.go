package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "2", Text: "second", SourceURL: "https://a", SourceDescription: "A", Order: 2},
		{ID: "1", Text: "first", SourceURL: "https://a", SourceDescription: "A", Order: 1},
	}
}

func TestRetrievalService_Retrieve(t *testing.T) {
	index := new(MockVectorIndex)
	index.On("Search", mock.Anything, VectorQuery{
		Text:      "window functions",
		IndexName: "my-ai",
		Namespace: "sql",
		TopK:      DefaultTopK,
		Fields:    domain.ChunkFields,
	}).Return(sampleChunks(), nil)

	svc := NewRetrievalService(index, RetrievalConfig{IndexName: "my-ai", Namespace: "sql"})
	out, err := svc.Retrieve(context.Background(), "  window functions ")

	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Contains(t, out, "<results>")
	assert.Contains(t, out, "</results>")
	assert.Less(t, strings.Index(out, "first"), strings.Index(out, "second"))
	index.AssertExpectations(t)
}

func TestRetrievalService_Retrieve_EmptyQuery(t *testing.T) {
	index := new(MockVectorIndex)
	svc := NewRetrievalService(index, RetrievalConfig{})

	_, err := svc.Retrieve(context.Background(), "   ")

	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestRetrievalService_Retrieve_NoMatches(t *testing.T) {
	index := new(MockVectorIndex)
	index.On("Search", mock.Anything, mock.Anything).Return([]domain.Chunk{}, nil)

	svc := NewRetrievalService(index, RetrievalConfig{TopK: 5})
	out, err := svc.Retrieve(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestRetrievalService_Retrieve_IndexError(t *testing.T) {
	index := new(MockVectorIndex)
	cause := errors.New("connection refused")
	index.On("Search", mock.Anything, mock.Anything).Return(nil, cause)

	svc := NewRetrievalService(index, RetrievalConfig{})
	_, err := svc.Retrieve(context.Background(), "q")

	assert.ErrorIs(t, err, domain.ErrRetrievalFailed)
	assert.ErrorIs(t, err, cause)
}

func TestEmbeddingIndex_Search(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockChunkSearcher)
	vec := []float32{0.1, 0.2}

	stored := []domain.Chunk{{
		ID: "c1", Text: "t", SourceURL: "https://a", Dialect: "postgresql", Topic: "joins", Score: 0.9,
	}}
	embedder.On("GenerateEmbedding", mock.Anything, "q").Return(vec, nil)
	store.On("SearchByEmbedding", mock.Anything, vec, "my-ai", "sql", 40).Return(stored, nil)

	idx := NewEmbeddingIndex(embedder, store)
	got, err := idx.Search(context.Background(), VectorQuery{
		Text:      "q",
		IndexName: "my-ai",
		Namespace: "sql",
		TopK:      40,
		Fields:    []string{domain.FieldText, domain.FieldSourceURL},
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t", got[0].Text)
	assert.Equal(t, "https://a", got[0].SourceURL)
	assert.Empty(t, got[0].Dialect)
	assert.Empty(t, got[0].Topic)
	assert.Equal(t, float32(0.9), got[0].Score)
}

func TestEmbeddingIndex_Search_EmbedError(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockChunkSearcher)
	embedder.On("GenerateEmbedding", mock.Anything, "q").Return(nil, errors.New("quota"))

	idx := NewEmbeddingIndex(embedder, store)
	_, err := idx.Search(context.Background(), VectorQuery{Text: "q"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
	store.AssertNotCalled(t, "SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
