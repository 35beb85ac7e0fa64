package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://api.exa.ai"
	DefaultNumResults = 5

	// maxTextChars caps the page excerpt requested per result.
	maxTextChars = 1200
)

// Config holds configuration for the search API client.
type Config struct {
	APIKey     string
	BaseURL    string
	NumResults int
	Timeout    time.Duration
}

// Client queries an Exa-compatible search API.
type Client struct {
	apiKey     string
	baseURL    string
	numResults int
	httpClient *http.Client
}

// Result is a single web page returned by a search.
type Result struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	PublishedDate string `json:"publishedDate,omitempty"`
	Author        string `json:"author,omitempty"`
	Text          string `json:"text,omitempty"`
}

type searchRequest struct {
	Query      string         `json:"query"`
	NumResults int            `json:"numResults"`
	Contents   searchContents `json:"contents"`
}

type searchContents struct {
	Text searchText `json:"text"`
}

type searchText struct {
	MaxCharacters int `json:"maxCharacters"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// APIError is returned when the search API answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("web search API error (%d): %s", e.StatusCode, e.Message)
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	numResults := cfg.NumResults
	if numResults <= 0 {
		numResults = DefaultNumResults
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		numResults: numResults,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search runs one query and returns at most the configured number of results.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(searchRequest{
		Query:      query,
		NumResults: c.numResults,
		Contents:   searchContents{Text: searchText{MaxCharacters: maxTextChars}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(parsed.Results) > c.numResults {
		parsed.Results = parsed.Results[:c.numResults]
	}
	return parsed.Results, nil
}

// Format renders results as numbered plain-text entries for the model.
func Format(results []Result) string {
	if len(results) == 0 {
		return "No web results found."
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		title := r.Title
		if title == "" {
			title = r.URL
		}
		fmt.Fprintf(&sb, "[%d] %s\nURL: %s", i+1, title, r.URL)
		if r.PublishedDate != "" {
			fmt.Fprintf(&sb, "\nPublished: %s", r.PublishedDate)
		}
		if text := strings.TrimSpace(r.Text); text != "" {
			sb.WriteString("\n")
			sb.WriteString(text)
		}
	}
	return sb.String()
}
