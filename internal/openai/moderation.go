package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultModerationModel classifies text and image inputs against the full taxonomy.
const DefaultModerationModel = openai.ModerationOmniLatest

// ModerationResponse is the moderation endpoint payload with categories kept
// as a map, so categories added after go-openai's ResultCategories (illicit,
// illicit/violent) are not lost.
type ModerationResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Results []ModerationResult `json:"results"`
}

type ModerationResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`
}

// ModerationAPI posts a moderation request and returns the decoded response.
type ModerationAPI interface {
	Moderations(ctx context.Context, request openai.ModerationRequest) (ModerationResponse, error)
}

// ModerationClient calls POST {baseURL}/moderations with the configured key.
type ModerationClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewModerationClient(cfg Config) *ModerationClient {
	defaults := openai.DefaultConfig(cfg.APIKey)
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaults.BaseURL
	}
	return &ModerationClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// Moderations sends one moderation request. Error bodies are decoded into
// go-openai's APIError so callers see the same error type as other endpoints.
func (c *ModerationClient) Moderations(ctx context.Context, request openai.ModerationRequest) (ModerationResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return ModerationResponse{}, fmt.Errorf("failed to marshal moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/moderations", bytes.NewReader(body))
	if err != nil {
		return ModerationResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ModerationResponse{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ModerationResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp openai.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != nil {
			errResp.Error.HTTPStatusCode = resp.StatusCode
			errResp.Error.HTTPStatus = resp.Status
			return ModerationResponse{}, errResp.Error
		}
		return ModerationResponse{}, &openai.APIError{
			HTTPStatusCode: resp.StatusCode,
			HTTPStatus:     resp.Status,
			Message:        strings.TrimSpace(string(respBody)),
		}
	}

	var parsed ModerationResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return ModerationResponse{}, fmt.Errorf("failed to parse moderation response: %w", err)
	}
	return parsed, nil
}

// Moderator classifies a single text span with the OpenAI moderation endpoint.
type Moderator struct {
	api   ModerationAPI
	model string
}

func NewModerator(api ModerationAPI, model string) *Moderator {
	if model == "" {
		model = DefaultModerationModel
	}
	return &Moderator{api: api, model: model}
}

// Classify returns the flagged state and the taxonomy categories reported for text.
func (m *Moderator) Classify(ctx context.Context, text string) (domain.Classification, error) {
	resp, err := m.api.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: m.model,
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("moderation request failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return domain.Classification{}, errors.New("moderation returned no results")
	}

	result := resp.Results[0]
	categories := make(map[domain.ModerationCategory]bool, len(domain.ModerationCategories))
	for _, category := range domain.ModerationCategories {
		categories[category] = result.Categories[string(category)]
	}
	return domain.Classification{
		Flagged:    result.Flagged,
		Categories: categories,
	}, nil
}
