package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cloo-solutions/sqlsherpa/internal/api"
	"github.com/cloo-solutions/sqlsherpa/internal/api/middleware"
	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/stream"
	"github.com/cloo-solutions/sqlsherpa/internal/telemetry"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// MaxMessages bounds the history accepted in one chat request.
const MaxMessages = 200

const timeoutErrorText = "The response took too long and was stopped. Please try again."

type ChatStreamer interface {
	Stream(ctx context.Context, messages []domain.Message, sink stream.Sink) error
}

type ChatHandler struct {
	svc      ChatStreamer
	timeout  time.Duration
	logger   *zap.Logger
	validate *validator.Validate
}

func NewChatHandler(svc ChatStreamer, timeout time.Duration, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		svc:      svc,
		timeout:  timeout,
		logger:   logger,
		validate: validator.New(),
	}
}

type ChatRequest struct {
	Messages []domain.Message `json:"messages" validate:"max=200,dive"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	sse, err := stream.NewSSEWriter(w)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	logger := h.logger.With(zap.String("request_id", middleware.GetRequestID(ctx)))

	err = h.svc.Stream(ctx, req.Messages, sse)
	if err != nil {
		if !sse.Started() {
			api.HandleError(w, err)
			return
		}
		telemetry.CaptureError(ctx, err)
		logger.Error("chat stream failed", zap.Error(err))
	} else if errors.Is(ctx.Err(), context.DeadlineExceeded) && r.Context().Err() == nil {
		logger.Warn("chat stream timed out", zap.Duration("timeout", h.timeout))
		_ = sse.Send(stream.Error(timeoutErrorText))
	}

	if r.Context().Err() != nil {
		return
	}
	if err := sse.Close(); err != nil {
		logger.Debug("failed to close chat stream", zap.Error(err))
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInvalidMessages.Message
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "Messages" && fe.Tag() == "max":
		return fmt.Sprintf("too many messages: at most %d allowed", MaxMessages)
	case fe.Field() == "Role":
		return "invalid message role: must be user, assistant or system"
	default:
		return domain.ErrInvalidMessages.Message
	}
}
