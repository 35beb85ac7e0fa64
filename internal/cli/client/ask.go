package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/stream"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		interactive   bool
		showReasoning bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask SQLSherpa a question",
		Long: `Sends a question to the chat endpoint and prints the answer as it streams.

With --interactive, keeps the conversation going until "exit" or end of input.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api := NewAPIClientWithCmd(cmd)
			r := &renderer{
				out:           cmd.OutOrStdout(),
				status:        cmd.ErrOrStderr(),
				json:          outputJSON,
				showReasoning: showReasoning,
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			question := strings.TrimSpace(strings.Join(args, " "))
			if interactive {
				return runConversation(ctx, api, r, cmd.InOrStdin(), question)
			}
			if question == "" {
				return errors.New("question required (or use --interactive)")
			}
			_, err := ask(ctx, api, r, []domain.Message{userMessage(question)})
			return err
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Keep a conversation open on stdin")
	cmd.Flags().BoolVar(&showReasoning, "show-reasoning", false, "Print model reasoning summaries")

	return cmd
}

func userMessage(text string) domain.Message {
	return domain.Message{ID: uuid.NewString(), Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart(text)}}
}

func assistantMessage(text string) domain.Message {
	return domain.Message{ID: uuid.NewString(), Role: domain.RoleAssistant, Parts: []domain.Part{domain.TextPart(text)}}
}

func ask(ctx context.Context, api *APIClient, r *renderer, history []domain.Message) (string, error) {
	chat, err := api.Chat(ctx, history)
	if err != nil {
		return "", err
	}
	defer chat.Close()

	return r.render(chat)
}

func runConversation(ctx context.Context, api *APIClient, r *renderer, in io.Reader, first string) error {
	var history []domain.Message
	scanner := bufio.NewScanner(in)

	next := first
	for {
		if next == "" {
			fmt.Fprint(r.status, "> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			next = strings.TrimSpace(scanner.Text())
			if next == "" {
				continue
			}
		}
		if next == "exit" || next == "quit" {
			return nil
		}

		history = append(history, userMessage(next))
		answer, err := ask(ctx, api, r, history)
		if err != nil {
			return err
		}
		history = append(history, assistantMessage(answer))
		next = ""
	}
}

// EventSource yields stream events until io.EOF.
type EventSource interface {
	Next() (stream.Event, error)
}

type renderer struct {
	out           io.Writer
	status        io.Writer
	json          bool
	showReasoning bool
}

// render prints events from src and returns the concatenated answer text.
func (r *renderer) render(src EventSource) (string, error) {
	var answer strings.Builder
	for {
		event, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return answer.String(), err
		}

		if r.json {
			line, _ := json.Marshal(event)
			fmt.Fprintln(r.out, string(line))
		}

		switch event.Type {
		case stream.EventTextDelta:
			answer.WriteString(event.Delta)
			if !r.json {
				fmt.Fprint(r.out, event.Delta)
			}
		case stream.EventTextEnd:
			answer.WriteString("\n")
			if !r.json {
				fmt.Fprintln(r.out)
			}
		case stream.EventReasoningDelta:
			if r.showReasoning && !r.json {
				fmt.Fprint(r.status, event.Delta)
			}
		case stream.EventReasoningEnd:
			if r.showReasoning && !r.json {
				fmt.Fprintln(r.status)
			}
		case stream.EventToolInputAvailable:
			if !r.json {
				fmt.Fprintf(r.status, "[%s]\n", event.ToolName)
			}
		case stream.EventToolOutputError:
			if !r.json {
				fmt.Fprintf(r.status, "[tool error] %s\n", event.ErrorText)
			}
		case stream.EventError:
			return answer.String(), fmt.Errorf("stream error: %s", event.ErrorText)
		}
	}
	return strings.TrimSpace(answer.String()), nil
}
