package openai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is the chat model used when none is configured.
const DefaultChatModel = openai.GPT4Dot1

// ChatStream is a server-sent stream of completion chunks. Recv returns
// io.EOF once the provider signals the end of the stream.
type ChatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// ChatStreamer opens streaming chat completions.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error)
}

// ChatAdapter streams chat completions through the go-openai client.
type ChatAdapter struct {
	client *openai.Client
}

func NewChatAdapter(client *openai.Client) *ChatAdapter {
	return &ChatAdapter{client: client}
}

// StreamChat opens a completion stream; the caller must Close it.
func (a *ChatAdapter) StreamChat(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
	req.Stream = true
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
