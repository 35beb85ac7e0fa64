package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	llm "github.com/cloo-solutions/sqlsherpa/internal/openai"
	"github.com/cloo-solutions/sqlsherpa/internal/stream"
	"github.com/cloo-solutions/sqlsherpa/internal/telemetry"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultMaxSteps         = 10
	DefaultReasoningEffort  = "low"
	DefaultReasoningSummary = "auto"
)

// AgentConfig controls the model call loop.
type AgentConfig struct {
	Model           string
	MaxSteps        int
	ReasoningEffort string
	// ReasoningSummary is logged with each step; chat completions have no
	// field for it.
	ReasoningSummary string
}

// Agent drives a multi-step streaming conversation with the model, running
// requested tools one at a time between steps.
type Agent struct {
	llm    llm.ChatStreamer
	tools  *ToolRegistry
	cfg    AgentConfig
	logger *zap.Logger
	newID  func() string
}

func NewAgent(streamer llm.ChatStreamer, tools *ToolRegistry, cfg AgentConfig, logger *zap.Logger) *Agent {
	if cfg.Model == "" {
		cfg.Model = llm.DefaultChatModel
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.ReasoningEffort == "" {
		cfg.ReasoningEffort = DefaultReasoningEffort
	}
	if cfg.ReasoningSummary == "" {
		cfg.ReasoningSummary = DefaultReasoningSummary
	}
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Agent{
		llm:    streamer,
		tools:  tools,
		cfg:    cfg,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// IsReasoningModel reports whether model accepts reasoning_effort.
func IsReasoningModel(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

// Run streams model output to sink until the model stops calling tools or
// the step limit is reached. It returns the number of steps taken.
// Cancellation of ctx ends the run with ctx.Err() and no error event.
func (a *Agent) Run(ctx context.Context, messages []openai.ChatCompletionMessage, sink stream.Sink) (int, error) {
	history := append([]openai.ChatCompletionMessage(nil), messages...)

	for step := 1; step <= a.cfg.MaxSteps; step++ {
		calls, err := a.runStep(ctx, step, &history, sink)
		if err != nil {
			return step, err
		}
		if len(calls) == 0 {
			return step, nil
		}
	}

	a.logger.Warn("agent reached step limit", zap.Int("max_steps", a.cfg.MaxSteps))
	return a.cfg.MaxSteps, nil
}

// stepState tracks the open text and reasoning parts of one step.
type stepState struct {
	sink        stream.Sink
	textID      string
	reasoningID string
	text        strings.Builder
	calls       map[int]*openai.ToolCall
}

func (s *stepState) closeReasoning() error {
	if s.reasoningID == "" {
		return nil
	}
	id := s.reasoningID
	s.reasoningID = ""
	return s.sink.Send(stream.ReasoningEnd(id))
}

func (s *stepState) closeText() error {
	if s.textID == "" {
		return nil
	}
	id := s.textID
	s.textID = ""
	return s.sink.Send(stream.TextEnd(id))
}

func (a *Agent) request(history []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    a.cfg.Model,
		Messages: history,
		Stream:   true,
	}
	if a.tools.Len() > 0 {
		req.Tools = a.tools.Definitions()
		req.ParallelToolCalls = false
	}
	if IsReasoningModel(a.cfg.Model) {
		req.ReasoningEffort = a.cfg.ReasoningEffort
	}
	return req
}

func (a *Agent) runStep(ctx context.Context, step int, history *[]openai.ChatCompletionMessage, sink stream.Sink) ([]openai.ToolCall, error) {
	ctx, span := telemetry.StartSpan(ctx, "Agent.Step", telemetry.SpanAttributes{
		Step:      step,
		Operation: "model_step",
	})
	defer span.End()

	a.logger.Debug("model step",
		zap.Int("step", step),
		zap.String("model", a.cfg.Model),
		zap.String("reasoning_summary", a.cfg.ReasoningSummary),
		zap.Int("messages", len(*history)),
	)
	if err := sink.Send(stream.StartStep()); err != nil {
		return nil, err
	}

	st := &stepState{sink: sink, calls: make(map[int]*openai.ToolCall)}
	if err := a.consume(ctx, *history, st); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		span.SetError(err)
		a.logger.Error("model stream failed", zap.Int("step", step), zap.Error(err))
		if sendErr := sink.Send(stream.Error(err.Error())); sendErr != nil {
			return nil, sendErr
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrModelStream, err)
	}

	calls := orderedCalls(st.calls)
	*history = append(*history, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   st.text.String(),
		ToolCalls: calls,
	})

	for _, call := range calls {
		output, err := a.execute(ctx, call, sink)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			return nil, err
		}
		*history = append(*history, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    output,
			ToolCallID: call.ID,
		})
	}

	if err := sink.Send(stream.FinishStep()); err != nil {
		return nil, err
	}
	return calls, nil
}

// consume reads one completion stream and forwards its deltas.
func (a *Agent) consume(ctx context.Context, history []openai.ChatCompletionMessage, st *stepState) error {
	completion, err := a.llm.StreamChat(ctx, a.request(history))
	if err != nil {
		return err
	}
	defer completion.Close()

	for {
		resp, err := completion.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.ReasoningContent != "" {
			if st.reasoningID == "" {
				st.reasoningID = a.newID()
				if err := st.sink.Send(stream.ReasoningStart(st.reasoningID)); err != nil {
					return err
				}
			}
			if err := st.sink.Send(stream.ReasoningDelta(st.reasoningID, delta.ReasoningContent)); err != nil {
				return err
			}
		}

		if delta.Content != "" {
			if err := st.closeReasoning(); err != nil {
				return err
			}
			if st.textID == "" {
				st.textID = a.newID()
				if err := st.sink.Send(stream.TextStart(st.textID)); err != nil {
					return err
				}
			}
			st.text.WriteString(delta.Content)
			if err := st.sink.Send(stream.TextDelta(st.textID, delta.Content)); err != nil {
				return err
			}
		}

		for _, tc := range delta.ToolCalls {
			if err := a.accumulateCall(st, tc); err != nil {
				return err
			}
		}
	}

	if err := st.closeReasoning(); err != nil {
		return err
	}
	return st.closeText()
}

func (a *Agent) accumulateCall(st *stepState, tc openai.ToolCall) error {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}

	call, ok := st.calls[idx]
	if !ok {
		if err := st.closeReasoning(); err != nil {
			return err
		}
		if err := st.closeText(); err != nil {
			return err
		}
		id := tc.ID
		if id == "" {
			id = a.newID()
		}
		call = &openai.ToolCall{
			Index:    &idx,
			ID:       id,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: tc.Function.Name},
		}
		st.calls[idx] = call
		if err := st.sink.Send(stream.ToolInputStart(call.ID, call.Function.Name)); err != nil {
			return err
		}
	} else if call.Function.Name == "" && tc.Function.Name != "" {
		call.Function.Name = tc.Function.Name
	}

	if tc.Function.Arguments != "" {
		call.Function.Arguments += tc.Function.Arguments
		return st.sink.Send(stream.ToolInputDelta(call.ID, tc.Function.Arguments))
	}
	return nil
}

func orderedCalls(calls map[int]*openai.ToolCall) []openai.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]openai.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, *calls[idx])
	}
	return out
}

// execute runs one tool call. Tool failures become an "Error: ..." result
// for the model; only sink failures are returned.
func (a *Agent) execute(ctx context.Context, call openai.ToolCall, sink stream.Sink) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Agent.Tool", telemetry.SpanAttributes{
		Tool:      call.Function.Name,
		Operation: "tool_call",
	})
	defer span.End()

	args := json.RawMessage(call.Function.Arguments)
	var input any = call.Function.Arguments
	if json.Valid(args) {
		input = args
	}
	if err := sink.Send(stream.ToolInputAvailable(call.ID, call.Function.Name, input)); err != nil {
		return "", err
	}

	output, err := a.runTool(ctx, call.Function.Name, args)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		telemetry.ToolCalls.WithLabelValues(call.Function.Name, "error").Inc()
		a.logger.Warn("tool call failed",
			zap.String("tool", call.Function.Name),
			zap.String("tool_call_id", call.ID),
			zap.Error(err),
		)
		if err := sink.Send(stream.ToolOutputError(call.ID, err.Error())); err != nil {
			return "", err
		}
		return "Error: " + err.Error(), nil
	}

	telemetry.ToolCalls.WithLabelValues(call.Function.Name, "ok").Inc()
	if err := sink.Send(stream.ToolOutputAvailable(call.ID, output)); err != nil {
		return "", err
	}
	return output, nil
}

func (a *Agent) runTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, err := a.tools.Get(name)
	if err != nil {
		return "", err
	}
	return tool.Execute(ctx, args)
}
