package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/websearch"
	"github.com/go-playground/validator/v10"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Tool names as exposed to the model.
const (
	ToolWebSearch            = "webSearch"
	ToolVectorDatabaseSearch = "vectorDatabaseSearch"
)

var validate = validator.New()

// Tool is a function the model may call during a chat turn.
type Tool interface {
	Name() string
	Definition() openai.Tool
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

type queryArgs struct {
	Query string `json:"query" validate:"required"`
}

func parseQueryArgs(args json.RawMessage) (string, error) {
	var in queryArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidToolInput, err)
	}
	in.Query = strings.TrimSpace(in.Query)
	if err := validate.Struct(in); err != nil {
		return "", fmt.Errorf("%w: query is required", domain.ErrInvalidToolInput)
	}
	return in.Query, nil
}

func queryToolDefinition(name, description, queryDescription string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Strict:      true,
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {
						Type:        jsonschema.String,
						Description: queryDescription,
					},
				},
				Required:             []string{"query"},
				AdditionalProperties: false,
			},
		},
	}
}

// WebSearcher is the search backend behind the webSearch tool.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// WebSearchTool searches the public web.
type WebSearchTool struct {
	searcher WebSearcher
}

func NewWebSearchTool(searcher WebSearcher) *WebSearchTool {
	return &WebSearchTool{searcher: searcher}
}

func (t *WebSearchTool) Name() string { return ToolWebSearch }

func (t *WebSearchTool) Definition() openai.Tool {
	return queryToolDefinition(ToolWebSearch,
		"Search the web for up-to-date information, vendor documentation and niche SQL details.",
		"The search query.",
	)
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := parseQueryArgs(args)
	if err != nil {
		return "", err
	}
	results, err := t.searcher.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrWebSearchFailed, err)
	}
	return websearch.Format(results), nil
}

// Retriever returns formatted context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// VectorSearchTool searches the SQL knowledge base.
type VectorSearchTool struct {
	retriever Retriever
}

func NewVectorSearchTool(retriever Retriever) *VectorSearchTool {
	return &VectorSearchTool{retriever: retriever}
}

func (t *VectorSearchTool) Name() string { return ToolVectorDatabaseSearch }

func (t *VectorSearchTool) Definition() openai.Tool {
	return queryToolDefinition(ToolVectorDatabaseSearch,
		"Search the SQL knowledge base for patterns, examples and course-provided references.",
		"The question or topic to look up.",
	)
}

func (t *VectorSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := parseQueryArgs(args)
	if err != nil {
		return "", err
	}
	out, err := t.retriever.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "No relevant results found in the vector database.", nil
	}
	return out, nil
}

// ToolRegistry looks tools up by the name the model uses.
type ToolRegistry struct {
	tools map[string]Tool
}

func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t != nil {
			r.tools[t.Name()] = t
		}
	}
	return r
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// Definitions returns the model-facing definitions sorted by name.
func (r *ToolRegistry) Definitions() []openai.Tool {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Len reports how many tools are registered.
func (r *ToolRegistry) Len() int { return len(r.tools) }
