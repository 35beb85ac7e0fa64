//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/sqlsherpa/internal/api/handlers"
	"github.com/cloo-solutions/sqlsherpa/internal/api/middleware"
	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/jobs"
	llm "github.com/cloo-solutions/sqlsherpa/internal/openai"
	"github.com/cloo-solutions/sqlsherpa/internal/repository"
	"github.com/cloo-solutions/sqlsherpa/internal/server"
	"github.com/cloo-solutions/sqlsherpa/internal/service"
	"github.com/cloo-solutions/sqlsherpa/internal/stream"
	"github.com/cloo-solutions/sqlsherpa/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	indexName = "my-ai"
	namespace = "sql"
)

// corpus has three chunks from two sources; the window-function source is
// stored out of order on purpose.
const corpus = `{"id":"wf-2","text":"Add ORDER BY inside OVER for running totals with window functions.","source_url":"https://docs.example.com/window","source_description":"Window functions guide","order":1,"dialect":"postgresql","topic":"window functions"}
{"id":"wf-1","text":"A window function computes across related rows.","source_url":"https://docs.example.com/window","source_description":"Window functions guide","order":0,"dialect":"postgresql","topic":"window functions"}
{"id":"join-1","text":"LEFT JOIN keeps unmatched rows from the left table.","source_url":"https://docs.example.com/joins","source_description":"Joins guide","order":0,"dialect":"postgresql","topic":"joins"}
`

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	OpenAI       *FakeOpenAI
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres, loads and embeds the corpus, and serves the chat API
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")
	fake := NewFakeOpenAI()

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		OpenAI:     fake,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	chunks := repository.NewChunkRepository(pool)
	embedder := llm.NewClientWithConfig(llm.Config{APIKey: "sk-test", BaseURL: fake.BaseURL()})

	ingest := service.NewIngestService(chunks, nil, indexName, namespace, zap.NewNop())
	if _, err := ingest.Ingest(ctx, strings.NewReader(corpus)); err != nil {
		t.Fatalf("failed to ingest corpus: %v", err)
	}
	worker := jobs.NewEmbeddingWorker(chunks, embedder, indexName, namespace, zap.NewNop())
	if _, err := worker.ProcessBatch(ctx); err != nil {
		t.Fatalf("failed to embed corpus: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env.ServerURL, env.ServerCloser = startServer(t, chunks, embedder, fake.BaseURL(), port)
	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.OpenAI != nil {
		e.OpenAI.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the sqlsherpa and sqlsherpad binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "sqlsherpa-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"sqlsherpa", "sqlsherpad"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunCLI runs the sqlsherpa client against the test server
func (e *E2ETestEnv) RunCLI(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "sqlsherpa"), args...)
	cmd.Env = append(os.Environ(), "SQLSHERPA_API_URL="+e.ServerURL)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunDaemon runs a sqlsherpad command against the test database and fake provider
func (e *E2ETestEnv) RunDaemon(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "sqlsherpad"), args...)
	cmd.Dir = "../.."
	cmd.Env = append(os.Environ(),
		"SQLSHERPA_DATABASE_URL="+e.PostgresC.ConnectionString(),
		"SQLSHERPA_OPENAI_API_KEY=sk-test",
		"SQLSHERPA_OPENAI_BASE_URL="+e.OpenAI.BaseURL(),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	resp, err := e.HTTPClient.Get(e.ServerURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// Chat posts a conversation and returns the status code and decoded events
func (e *E2ETestEnv) Chat(body string) (int, []stream.Event, error) {
	resp, err := e.HTTPClient.Post(e.ServerURL+"/api/chat", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, nil
	}

	reader := stream.NewReader(resp.Body)
	var events []stream.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return resp.StatusCode, events, nil
		}
		if err != nil {
			return resp.StatusCode, events, err
		}
		events = append(events, event)
	}
}

// ChatText posts a single user message
func (e *E2ETestEnv) ChatText(text string) (int, []stream.Event, error) {
	body, _ := json.Marshal(map[string]any{
		"messages": []domain.Message{{ID: "u1", Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart(text)}}},
	})
	return e.Chat(string(body))
}

func startServer(t *testing.T, chunks *repository.ChunkRepository, embedder *llm.Client, baseURL string, port int) (string, func()) {
	logger := zap.NewNop()
	api := llm.NewAPIClient(llm.Config{APIKey: "sk-test", BaseURL: baseURL})

	retrieval := service.NewRetrievalService(service.NewEmbeddingIndex(embedder, chunks), service.RetrievalConfig{
		IndexName: indexName,
		Namespace: namespace,
	})
	moderation := service.NewModerationService(llm.NewModerator(llm.NewModerationClient(llm.Config{APIKey: "sk-test", BaseURL: baseURL}), ""), service.FailClosed, logger)
	prompts := service.NewPromptAssembler(domain.DefaultBranding(), time.Now, time.UTC)
	tools := service.NewToolRegistry(service.NewVectorSearchTool(retrieval))
	agent := service.NewAgent(llm.NewChatAdapter(api), tools, service.AgentConfig{}, logger)
	chatSvc := service.NewChatService(moderation, retrieval, prompts, agent, logger)

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:     handlers.NewChatHandler(chatSvc, 30*time.Second, logger),
		BrandingHandler: handlers.NewBrandingHandler(domain.DefaultBranding()),
		RateLimiter:     middleware.NewRateLimiter(100, 100),
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func eventTypes(events []stream.Event) []stream.EventType {
	types := make([]stream.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func textOf(events []stream.Event) string {
	var b strings.Builder
	for _, e := range events {
		if e.Type == stream.EventTextDelta {
			b.WriteString(e.Delta)
		}
	}
	return b.String()
}
