//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

const embeddingDimensions = 1536

// topicVector maps text onto one of three orthogonal unit vectors so that
// similarity search results are predictable.
func topicVector(text string) []float32 {
	v := make([]float32, embeddingDimensions)
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "window"):
		v[0] = 1
	case strings.Contains(lower, "join"):
		v[1] = 1
	default:
		v[2] = 1
	}
	return v
}

type chatMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

type chatRequest struct {
	Model             string        `json:"model"`
	Messages          []chatMessage `json:"messages"`
	Tools             []any         `json:"tools,omitempty"`
	ParallelToolCalls *bool         `json:"parallel_tool_calls,omitempty"`
}

// FakeOpenAI serves the embeddings, moderations and streaming chat
// completion endpoints under /v1.
type FakeOpenAI struct {
	*httptest.Server

	mu       sync.Mutex
	requests []chatRequest
}

func NewFakeOpenAI() *FakeOpenAI {
	f := &FakeOpenAI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", f.embeddings)
	mux.HandleFunc("/v1/moderations", f.moderations)
	mux.HandleFunc("/v1/chat/completions", f.chat)
	f.Server = httptest.NewServer(mux)
	return f
}

func (f *FakeOpenAI) BaseURL() string {
	return f.URL + "/v1"
}

// ChatRequests returns the chat completion requests received so far.
func (f *FakeOpenAI) ChatRequests() []chatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatRequest(nil), f.requests...)
}

func (f *FakeOpenAI) embeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := make([]map[string]any, len(req.Input))
	for i, text := range req.Input {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": topicVector(text)}
	}
	writeJSON(w, map[string]any{"object": "list", "data": data, "model": "text-embedding-3-small"})
}

func (f *FakeOpenAI) moderations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	violent := strings.Contains(strings.ToLower(req.Input), "hurt")
	writeJSON(w, map[string]any{
		"id":    "modr-1",
		"model": "omni-moderation-latest",
		"results": []map[string]any{{
			"flagged":    violent,
			"categories": map[string]bool{"violence": violent},
		}},
	})
}

func (f *FakeOpenAI) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	var lastUser, toolResult string
	for _, m := range req.Messages {
		switch m.Role {
		case "user":
			lastUser = m.Content
		case "tool":
			toolResult = m.Content
		}
	}

	if strings.Contains(lastUser, "explode") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	switch {
	case toolResult != "":
		first, _, _ := strings.Cut(toolResult, "\n")
		writeChunk(w, map[string]any{"content": "From the docs: "})
		writeChunk(w, map[string]any{"content": first})
		writeFinish(w, "stop")
	case strings.Contains(lastUser, "search the docs"):
		idx := 0
		writeChunk(w, map[string]any{"tool_calls": []map[string]any{{
			"index": idx, "id": "call_1", "type": "function",
			"function": map[string]string{"name": "vectorDatabaseSearch", "arguments": ""},
		}}})
		writeChunk(w, map[string]any{"tool_calls": []map[string]any{{
			"index": idx, "function": map[string]string{"arguments": `{"query":"joins"}`},
		}}})
		writeFinish(w, "tool_calls")
	default:
		writeChunk(w, map[string]any{"role": "assistant", "content": "Use SUM(amount) "})
		writeChunk(w, map[string]any{"content": "OVER (ORDER BY day)."})
		writeFinish(w, "stop")
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func writeChunk(w http.ResponseWriter, delta map[string]any) {
	writeEvent(w, map[string]any{
		"id": "chatcmpl-1", "object": "chat.completion.chunk", "model": "gpt-4.1",
		"choices": []map[string]any{{"index": 0, "delta": delta}},
	})
}

func writeFinish(w http.ResponseWriter, reason string) {
	writeEvent(w, map[string]any{
		"id": "chatcmpl-1", "object": "chat.completion.chunk", "model": "gpt-4.1",
		"choices": []map[string]any{{"index": 0, "delta": map[string]any{}, "finish_reason": reason}},
	})
}

func writeEvent(w http.ResponseWriter, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
