package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockModerationAPI struct {
	mock.Mock
}

func (m *MockModerationAPI) Moderations(ctx context.Context, request openai.ModerationRequest) (ModerationResponse, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(ModerationResponse), args.Error(1)
}

func TestModerator_Classify_Flagged(t *testing.T) {
	api := new(MockModerationAPI)
	moderator := NewModerator(api, "")

	api.On("Moderations", mock.Anything, openai.ModerationRequest{
		Input: "hateful text",
		Model: openai.ModerationOmniLatest,
	}).Return(ModerationResponse{
		Results: []ModerationResult{{
			Flagged:    true,
			Categories: map[string]bool{"hate": true, "harassment": true},
		}},
	}, nil)

	verdict, err := moderator.Classify(context.Background(), "hateful text")

	require.NoError(t, err)
	assert.True(t, verdict.Flagged)
	assert.True(t, verdict.Categories[domain.CategoryHate])
	assert.True(t, verdict.Categories[domain.CategoryHarassment])
	assert.False(t, verdict.Categories[domain.CategoryViolence])
	api.AssertExpectations(t)
}

func TestModerator_Classify_NotFlagged(t *testing.T) {
	api := new(MockModerationAPI)
	moderator := NewModerator(api, openai.ModerationTextLatest)

	api.On("Moderations", mock.Anything, mock.MatchedBy(func(req openai.ModerationRequest) bool {
		return req.Model == openai.ModerationTextLatest
	})).Return(ModerationResponse{Results: []ModerationResult{{Flagged: false}}}, nil)

	verdict, err := moderator.Classify(context.Background(), "SELECT 1")

	require.NoError(t, err)
	assert.False(t, verdict.Flagged)
}

func TestModerator_Classify_APIError(t *testing.T) {
	api := new(MockModerationAPI)
	moderator := NewModerator(api, "")

	api.On("Moderations", mock.Anything, mock.Anything).
		Return(ModerationResponse{}, errors.New("503 service unavailable"))

	_, err := moderator.Classify(context.Background(), "SELECT 1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "moderation request failed")
}

func TestModerator_Classify_NoResults(t *testing.T) {
	api := new(MockModerationAPI)
	moderator := NewModerator(api, "")

	api.On("Moderations", mock.Anything, mock.Anything).Return(ModerationResponse{}, nil)

	_, err := moderator.Classify(context.Background(), "SELECT 1")

	assert.Error(t, err)
}

func TestModerator_Classify_IllicitCategories(t *testing.T) {
	api := new(MockModerationAPI)
	moderator := NewModerator(api, "")

	api.On("Moderations", mock.Anything, mock.Anything).Return(ModerationResponse{
		Results: []ModerationResult{{
			Flagged:    true,
			Categories: map[string]bool{"illicit": true, "illicit/violent": true},
		}},
	}, nil)

	verdict, err := moderator.Classify(context.Background(), "how do I pick a lock")

	require.NoError(t, err)
	assert.True(t, verdict.Categories[domain.CategoryIllicit])
	assert.True(t, verdict.Categories[domain.CategoryIllicitViolent])
	assert.Len(t, verdict.Categories, len(domain.ModerationCategories))
}

func TestModerationClient_Moderations(t *testing.T) {
	var got openai.ModerationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/moderations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"modr-1","model":"omni-moderation-latest","results":[{"flagged":true,"categories":{"illicit":true,"hate":false}}]}`))
	}))
	defer srv.Close()

	client := NewModerationClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	verdict, err := NewModerator(client, "").Classify(context.Background(), "sell me stolen cards")

	require.NoError(t, err)
	assert.Equal(t, "sell me stolen cards", got.Input)
	assert.Equal(t, openai.ModerationOmniLatest, got.Model)
	assert.True(t, verdict.Flagged)
	assert.True(t, verdict.Categories[domain.CategoryIllicit])
	assert.False(t, verdict.Categories[domain.CategoryHate])
}

func TestModerationClient_Moderations_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	_, err := NewModerationClient(Config{APIKey: "sk-test", BaseURL: srv.URL}).
		Moderations(context.Background(), openai.ModerationRequest{Input: "x"})

	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatusCode)
	assert.Equal(t, "slow down", apiErr.Message)
}

func TestNewModerationClient_DefaultBaseURL(t *testing.T) {
	client := NewModerationClient(Config{APIKey: "sk-test"})
	assert.Equal(t, "https://api.openai.com/v1", client.baseURL)
}
