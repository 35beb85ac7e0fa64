package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
)

const (
	// HeaderUIMessageStream marks a response as a UI message stream.
	HeaderUIMessageStream = "x-vercel-ai-ui-message-stream"
	uiMessageStreamV1     = "v1"

	doneFrame = "[DONE]"
)

// SSEWriter writes events as server-sent events, flushing after each one.
// Headers are sent with the first event so request errors can still be
// reported as plain JSON before the stream starts.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	started bool
}

// NewSSEWriter returns domain.ErrStreamingUnsupported when w cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, domain.ErrStreamingUnsupported
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

func (s *SSEWriter) start() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(HeaderUIMessageStream, uiMessageStreamV1)
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

// Send writes one event frame and flushes it to the client.
func (s *SSEWriter) Send(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}
	return s.writeFrame(string(data))
}

// Close terminates the stream with the [DONE] frame.
func (s *SSEWriter) Close() error {
	return s.writeFrame(doneFrame)
}

// Started reports whether any frame has been written.
func (s *SSEWriter) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *SSEWriter) writeFrame(payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.start()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Reader decodes a UI message stream produced by SSEWriter.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next event, or io.EOF after the [DONE] frame or end of input.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == doneFrame {
			return Event{}, io.EOF
		}
		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return Event{}, fmt.Errorf("failed to decode stream event: %w", err)
		}
		return event, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
