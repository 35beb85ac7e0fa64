package stream

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noFlushWriter struct {
	http.ResponseWriter
}

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(noFlushWriter{httptest.NewRecorder()})

	assert.ErrorIs(t, err, domain.ErrStreamingUnsupported)
}

func TestSSEWriter_WritesFramesAndHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)
	assert.False(t, w.Started())

	require.NoError(t, w.Send(Start("msg-1")))
	require.NoError(t, w.Send(TextStart("t1")))
	require.NoError(t, w.Send(TextDelta("t1", "SELECT 1;")))
	require.NoError(t, w.Send(TextEnd("t1")))
	require.NoError(t, w.Send(Finish()))
	require.NoError(t, w.Close())

	assert.True(t, w.Started())
	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "v1", rec.Header().Get(HeaderUIMessageStream))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, `data: {"type":"start","messageId":"msg-1"}`+"\n\n"))
	assert.Contains(t, body, `data: {"type":"text-delta","id":"t1","delta":"SELECT 1;"}`+"\n\n")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestReader_DecodesWriterOutput(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	sent := []Event{
		Start("m"),
		ToolInputAvailable("call_1", "webSearch", map[string]any{"query": "snowflake qualify"}),
		ToolOutputError("call_1", "web search failed"),
		TextStart("t"),
		TextDelta("t", "done"),
		TextEnd("t"),
		Finish(),
	}
	for _, e := range sent {
		require.NoError(t, w.Send(e))
	}
	require.NoError(t, w.Close())

	r := NewReader(strings.NewReader(rec.Body.String()))
	var got []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, e)
	}

	require.Len(t, got, len(sent))
	assert.Equal(t, EventToolInputAvailable, got[1].Type)
	assert.Equal(t, "webSearch", got[1].ToolName)
	assert.Equal(t, map[string]any{"query": "snowflake qualify"}, got[1].Input)
	assert.Equal(t, "web search failed", got[2].ErrorText)
	assert.Equal(t, "done", got[4].Delta)
}

func TestReader_InvalidFrame(t *testing.T) {
	r := NewReader(strings.NewReader("data: {not json}\n\n"))

	_, err := r.Next()

	assert.Error(t, err)
}

func TestReader_IgnoresCommentsAndEndsWithoutDone(t *testing.T) {
	r := NewReader(strings.NewReader(": keep-alive\n\ndata: {\"type\":\"finish\"}\n\n"))

	e, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, EventFinish, e.Type)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCollector(t *testing.T) {
	c := &Collector{}
	_ = c.Send(TextDelta("a", "SELECT "))
	_ = c.Send(ReasoningDelta("r", "thinking"))
	_ = c.Send(TextDelta("a", "1"))

	assert.Equal(t, "SELECT 1", c.Text())
	assert.Equal(t, []EventType{EventTextDelta, EventReasoningDelta, EventTextDelta}, c.Types())
}
