package rag

import (
	"strings"
	"testing"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pgWindowURL = "https://www.postgresql.org/docs/current/tutorial-window.html"
	pgFuncURL   = "https://www.postgresql.org/docs/current/functions-window.html"
)

func windowChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "a2", SourceURL: pgWindowURL, SourceDescription: "PostgreSQL tutorial: window functions", Order: 2, Text: "SUM(amount) OVER (ORDER BY created_at)", Dialect: "postgresql", Topic: "window functions"},
		{ID: "b1", SourceURL: pgFuncURL, SourceDescription: "PostgreSQL window function reference", Order: 1, Text: "row_number() numbers rows", Dialect: "postgresql"},
		{ID: "a1", SourceURL: pgWindowURL, SourceDescription: "PostgreSQL tutorial: window functions", Order: 1, Text: "A window function performs a calculation across rows", PreContext: "3.5. Window Functions"},
	}
}

func TestGroupSources_FirstSeenOrderAndSortedChunks(t *testing.T) {
	sources := GroupSources(windowChunks())

	require.Len(t, sources, 2)
	assert.Equal(t, pgWindowURL, sources[0].URL)
	assert.Equal(t, pgFuncURL, sources[1].URL)

	require.Len(t, sources[0].Chunks, 2)
	assert.Equal(t, "a1", sources[0].Chunks[0].ID)
	assert.Equal(t, "a2", sources[0].Chunks[1].ID)
	assert.Equal(t, "PostgreSQL tutorial: window functions", sources[0].Description)
}

func TestGroupSources_DropsExactDuplicates(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: "x", SourceURL: pgWindowURL, Order: 3, Text: "first copy"},
		{ID: "y", SourceURL: pgWindowURL, Order: 3, Text: "second copy"},
		{ID: "z", SourceURL: pgFuncURL, Order: 3, Text: "same order, other source"},
	}

	sources := GroupSources(chunks)

	require.Len(t, sources, 2)
	require.Len(t, sources[0].Chunks, 1)
	assert.Equal(t, "x", sources[0].Chunks[0].ID)
	require.Len(t, sources[1].Chunks, 1)
}

func TestGroupSources_StableOnEqualOrder(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: "late", SourceURL: pgWindowURL, Order: 5},
		{ID: "early", SourceURL: pgWindowURL, Order: 0},
		{ID: "other", SourceURL: "https://dev.mysql.com/doc/", Order: 5},
	}

	sources := GroupSources(chunks)

	require.Len(t, sources, 2)
	assert.Equal(t, []string{"early", "late"}, []string{sources[0].Chunks[0].ID, sources[0].Chunks[1].ID})
}

func TestGroupSources_Empty(t *testing.T) {
	assert.Empty(t, GroupSources(nil))
	assert.Empty(t, GroupSources([]domain.Chunk{}))
}

func TestFormatContext_Empty(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
	assert.Equal(t, "", BuildContext(nil))
	assert.Equal(t, "", BuildContext([]domain.Chunk{}))
}

func TestFormatContext_RendersSources(t *testing.T) {
	out := FormatContext(GroupSources(windowChunks()))

	assert.True(t, strings.HasPrefix(out, "[1] PostgreSQL tutorial: window functions\nURL: "+pgWindowURL))
	assert.Contains(t, out, "[2] PostgreSQL window function reference\nURL: "+pgFuncURL)
	assert.Contains(t, out, "Dialect: postgresql")
	assert.Contains(t, out, "Topic: window functions")

	pre := strings.Index(out, "3.5. Window Functions")
	body := strings.Index(out, "A window function performs")
	second := strings.Index(out, "SUM(amount) OVER")
	assert.True(t, pre >= 0 && pre < body && body < second, "chunks rendered in order with pre-context first")
	assert.Equal(t, 2, strings.Count(out, "URL: "))
}

func TestFormatContext_DescriptionFallsBackToURL(t *testing.T) {
	out := FormatContext([]domain.Source{{URL: pgFuncURL, Chunks: []domain.Chunk{{Text: "lag()"}}}})

	assert.True(t, strings.HasPrefix(out, "[1] "+pgFuncURL))
	assert.Contains(t, out, "lag()")
}

func TestBuildContext_Wraps(t *testing.T) {
	out := BuildContext(windowChunks())

	assert.True(t, strings.HasPrefix(out, "<results>[1] "))
	assert.True(t, strings.HasSuffix(out, "</results>"))
	assert.Equal(t, "<results>x</results>", Wrap("x"))
}
