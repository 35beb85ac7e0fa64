// Package stream implements the UI message stream protocol: typed events
// delivered as server-sent events and terminated by a [DONE] frame.
package stream

// EventType names one kind of UI message stream event.
type EventType string

const (
	EventStart               EventType = "start"
	EventStartStep           EventType = "start-step"
	EventTextStart           EventType = "text-start"
	EventTextDelta           EventType = "text-delta"
	EventTextEnd             EventType = "text-end"
	EventReasoningStart      EventType = "reasoning-start"
	EventReasoningDelta      EventType = "reasoning-delta"
	EventReasoningEnd        EventType = "reasoning-end"
	EventToolInputStart      EventType = "tool-input-start"
	EventToolInputDelta      EventType = "tool-input-delta"
	EventToolInputAvailable  EventType = "tool-input-available"
	EventToolOutputAvailable EventType = "tool-output-available"
	EventToolOutputError     EventType = "tool-output-error"
	EventFinishStep          EventType = "finish-step"
	EventFinish              EventType = "finish"
	EventError               EventType = "error"
)

// Event is a single frame of the stream. Only the fields relevant to Type are set.
type Event struct {
	Type           EventType `json:"type"`
	MessageID      string    `json:"messageId,omitempty"`
	ID             string    `json:"id,omitempty"`
	Delta          string    `json:"delta,omitempty"`
	ToolCallID     string    `json:"toolCallId,omitempty"`
	ToolName       string    `json:"toolName,omitempty"`
	InputTextDelta string    `json:"inputTextDelta,omitempty"`
	Input          any       `json:"input,omitempty"`
	Output         any       `json:"output,omitempty"`
	ErrorText      string    `json:"errorText,omitempty"`
}

// Sink receives events in order. Implementations deliver each event before returning.
type Sink interface {
	Send(event Event) error
}

func Start(messageID string) Event { return Event{Type: EventStart, MessageID: messageID} }
func StartStep() Event             { return Event{Type: EventStartStep} }
func FinishStep() Event            { return Event{Type: EventFinishStep} }
func Finish() Event                { return Event{Type: EventFinish} }

func TextStart(id string) Event             { return Event{Type: EventTextStart, ID: id} }
func TextDelta(id, delta string) Event      { return Event{Type: EventTextDelta, ID: id, Delta: delta} }
func TextEnd(id string) Event               { return Event{Type: EventTextEnd, ID: id} }
func ReasoningStart(id string) Event        { return Event{Type: EventReasoningStart, ID: id} }
func ReasoningDelta(id, delta string) Event { return Event{Type: EventReasoningDelta, ID: id, Delta: delta} }
func ReasoningEnd(id string) Event          { return Event{Type: EventReasoningEnd, ID: id} }

func ToolInputStart(callID, toolName string) Event {
	return Event{Type: EventToolInputStart, ToolCallID: callID, ToolName: toolName}
}

func ToolInputDelta(callID, delta string) Event {
	return Event{Type: EventToolInputDelta, ToolCallID: callID, InputTextDelta: delta}
}

func ToolInputAvailable(callID, toolName string, input any) Event {
	return Event{Type: EventToolInputAvailable, ToolCallID: callID, ToolName: toolName, Input: input}
}

func ToolOutputAvailable(callID string, output any) Event {
	return Event{Type: EventToolOutputAvailable, ToolCallID: callID, Output: output}
}

func ToolOutputError(callID, errText string) Event {
	return Event{Type: EventToolOutputError, ToolCallID: callID, ErrorText: errText}
}

func Error(errText string) Event { return Event{Type: EventError, ErrorText: errText} }

// Collector is an in-memory Sink.
type Collector struct {
	Events []Event
}

func (c *Collector) Send(event Event) error {
	c.Events = append(c.Events, event)
	return nil
}

// Types returns the event types in the order they were received.
func (c *Collector) Types() []EventType {
	types := make([]EventType, len(c.Events))
	for i, e := range c.Events {
		types[i] = e.Type
	}
	return types
}

// Text concatenates every text-delta payload.
func (c *Collector) Text() string {
	var out string
	for _, e := range c.Events {
		if e.Type == EventTextDelta {
			out += e.Delta
		}
	}
	return out
}
