package domain

import (
	"encoding/json"
	"strings"
)

// Role represents the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid reports whether r is one of the supported roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// PartTypeText is the only part type consumed when building model input.
const PartTypeText = "text"

// Part is one content part of a message. Parts other than text are kept
// verbatim so they survive a decode/encode round trip.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	raw json.RawMessage
}

type partAlias struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// UnmarshalJSON decodes the type and text fields and remembers the raw payload.
func (p *Part) UnmarshalJSON(data []byte) error {
	var a partAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	p.Type = a.Type
	p.Text = a.Text
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original payload for non-text parts.
func (p Part) MarshalJSON() ([]byte, error) {
	if p.Type != PartTypeText && len(p.raw) > 0 {
		return p.raw, nil
	}
	return json.Marshal(partAlias{Type: p.Type, Text: p.Text})
}

// TextPart builds a text part
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// Message is a single chat message as sent by the UI
type Message struct {
	ID    string `json:"id,omitempty"`
	Role  Role   `json:"role" validate:"required,oneof=user assistant system"`
	Parts []Part `json:"parts"`
}

// Text concatenates the message's text parts in order.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// LatestUserText returns the trimmed text of the most recent user message,
// or "" when the history has no user message.
func LatestUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return strings.TrimSpace(messages[i].Text())
		}
	}
	return ""
}
