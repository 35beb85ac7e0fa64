package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Search(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Window functions","url":"https://example.com/window","publishedDate":"2024-01-02","text":"ROW_NUMBER() OVER ..."},
			{"title":"CTEs","url":"https://example.com/cte"},
			{"title":"Extra","url":"https://example.com/extra"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/", NumResults: 2})
	results, err := client.Search(context.Background(), "postgres window functions")
	require.NoError(t, err)

	assert.Equal(t, "postgres window functions", got.Query)
	assert.Equal(t, 2, got.NumResults)
	assert.Equal(t, maxTextChars, got.Contents.Text.MaxCharacters)

	require.Len(t, results, 2)
	assert.Equal(t, "Window functions", results[0].Title)
	assert.Equal(t, "2024-01-02", results[0].PublishedDate)
}

func TestClient_Search_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: srv.URL})
	_, err := client.Search(context.Background(), "q")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "invalid api key")
}

func TestClient_Search_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := client.Search(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{})
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultNumResults, client.numResults)
}

func TestFormat(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "No web results found.", Format(nil))
	})

	t.Run("renders numbered entries", func(t *testing.T) {
		out := Format([]Result{
			{Title: "Window functions", URL: "https://a", PublishedDate: "2024-01-02", Text: " body "},
			{URL: "https://b"},
		})
		expected := "[1] Window functions\nURL: https://a\nPublished: 2024-01-02\nbody\n\n[2] https://b\nURL: https://b"
		assert.Equal(t, expected, out)
	})
}
