package service

import (
	"context"
	"errors"

	"github.com/cloo-solutions/sqlsherpa/internal/api/middleware"
	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/stream"
	"github.com/cloo-solutions/sqlsherpa/internal/telemetry"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DenialTextID is the text part id used for moderation refusals.
const DenialTextID = "moderation-denial-text"

// Moderator gates user input.
type Moderator interface {
	Check(ctx context.Context, text string) domain.ModerationResult
}

// PromptBuilder renders the system prompt around retrieved context.
type PromptBuilder interface {
	Build(ragContext string) string
}

// AgentRunner streams the model's answer for a prepared conversation.
type AgentRunner interface {
	Run(ctx context.Context, messages []openai.ChatCompletionMessage, sink stream.Sink) (int, error)
}

// ChatService handles one chat request: moderation, retrieval, prompt
// assembly and the streamed model answer.
type ChatService struct {
	moderator Moderator
	retriever Retriever
	prompts   PromptBuilder
	agent     AgentRunner
	logger    *zap.Logger
	newID     func() string
}

func NewChatService(moderator Moderator, retriever Retriever, prompts PromptBuilder, agent AgentRunner, logger *zap.Logger) *ChatService {
	return &ChatService{
		moderator: moderator,
		retriever: retriever,
		prompts:   prompts,
		agent:     agent,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Stream writes the response for messages to sink. A cancelled ctx ends the
// stream quietly; a model failure has already been reported to sink as an
// error event when the returned error wraps domain.ErrModelStream.
func (s *ChatService) Stream(ctx context.Context, messages []domain.Message, sink stream.Sink) error {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Stream", chatSpanAttributes(ctx))
	defer span.End()

	messageID := s.newID()
	text := domain.LatestUserText(messages)

	if text != "" {
		telemetry.AddBreadcrumb(ctx, "chat", "moderating")
		if result := s.moderator.Check(ctx, text); result.Flagged {
			telemetry.ChatRequests.WithLabelValues(telemetry.OutcomeDenied).Inc()
			return s.deny(messageID, result, sink)
		}
	}

	ragContext := ""
	if text != "" {
		telemetry.AddBreadcrumb(ctx, "chat", "retrieving")
		retrieved, err := s.retriever.Retrieve(ctx, text)
		if err != nil {
			telemetry.RetrievalFailures.Inc()
			telemetry.CaptureError(ctx, err)
			s.logger.Warn("retrieval failed, continuing without context", zap.Error(err))
		} else {
			ragContext = retrieved
		}
	}

	telemetry.AddBreadcrumb(ctx, "chat", "streaming")
	modelMessages := ToModelMessages(s.prompts.Build(ragContext), messages)

	if err := sink.Send(stream.Start(messageID)); err != nil {
		return err
	}

	steps, err := s.agent.Run(ctx, modelMessages, sink)
	telemetry.AgentSteps.Observe(float64(steps))
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			telemetry.ChatRequests.WithLabelValues(telemetry.OutcomeCancelled).Inc()
			s.logger.Info("chat stream cancelled", zap.Int("steps", steps))
			return nil
		}
		telemetry.ChatRequests.WithLabelValues(telemetry.OutcomeFailed).Inc()
		span.SetError(err)
		return err
	}

	telemetry.ChatRequests.WithLabelValues(telemetry.OutcomeStreamed).Inc()
	return sink.Send(stream.Finish())
}

func (s *ChatService) deny(messageID string, result domain.ModerationResult, sink stream.Sink) error {
	for _, event := range []stream.Event{
		stream.Start(messageID),
		stream.TextStart(DenialTextID),
		stream.TextDelta(DenialTextID, result.DenialMessage),
		stream.TextEnd(DenialTextID),
		stream.Finish(),
	} {
		if err := sink.Send(event); err != nil {
			return err
		}
	}
	return nil
}

// ToModelMessages prepends the system prompt and converts the UI history.
// Only text parts are kept; messages without text are skipped.
func ToModelMessages(systemPrompt string, messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for _, m := range messages {
		text := m.Text()
		if text == "" {
			continue
		}
		var role string
		switch m.Role {
		case domain.RoleUser:
			role = openai.ChatMessageRoleUser
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		default:
			continue
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: text})
	}
	return out
}

func chatSpanAttributes(ctx context.Context) telemetry.SpanAttributes {
	return telemetry.SpanAttributes{
		RequestID: middleware.GetRequestID(ctx),
		Operation: "chat",
	}
}
