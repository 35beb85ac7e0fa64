package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/stream"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIURL = "SQLSHERPA_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClientWithCmd resolves the base URL with the cascade flag → env → default.
// If cmd is nil, skips flag checking.
func NewAPIClientWithCmd(cmd *cobra.Command) *APIClient {
	_ = godotenv.Load()

	var baseURL string
	if cmd != nil {
		if flagURL, err := cmd.Flags().GetString("api-url"); err == nil && flagURL != "" {
			baseURL = flagURL
		}
	}
	if baseURL == "" {
		baseURL = os.Getenv(envAPIURL)
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	return NewAPIClientWithConfig(baseURL, nil)
}

// NewAPIClientWithConfig creates an APIClient with an explicit base URL. The
// http client must not set an overall Timeout since chat responses stream.
func NewAPIClientWithConfig(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// APIResponse represents the standard API response format.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Get performs a GET request.
func (c *APIClient) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return decodeResponse(resp.StatusCode, respBody)
}

func decodeResponse(status int, body []byte) (*APIResponse, error) {
	var apiResp APIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		if status >= 400 {
			return nil, &APIError{StatusCode: status, Message: string(body)}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if status >= 400 {
		return nil, &APIError{StatusCode: status, Message: apiResp.Error}
	}

	return &apiResp, nil
}

// ChatStream is an open chat response. Close releases the connection.
type ChatStream struct {
	*stream.Reader
	body io.Closer
}

func (s *ChatStream) Close() error {
	return s.body.Close()
}

// Chat posts the conversation and returns the event stream. Errors reported
// before the stream starts come back as *APIError.
func (c *APIClient) Chat(ctx context.Context, messages []domain.Message) (*ChatStream, error) {
	payload, err := json.Marshal(map[string][]domain.Message{"messages": messages})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		_, err := decodeResponse(resp.StatusCode, body)
		return nil, err
	}

	return &ChatStream{Reader: stream.NewReader(resp.Body), body: resp.Body}, nil
}
