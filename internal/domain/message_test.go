package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		role     Role
		expected bool
	}{
		{RoleUser, true},
		{RoleAssistant, true},
		{RoleSystem, true},
		{Role("tool"), false},
		{Role(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.role.IsValid())
		})
	}
}

func TestLatestUserText(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		expected string
	}{
		{
			name:     "empty history",
			messages: nil,
			expected: "",
		},
		{
			name: "no user message",
			messages: []Message{
				{Role: RoleAssistant, Parts: []Part{TextPart("Hi! I'm SQLSherpa")}},
				{Role: RoleSystem, Parts: []Part{TextPart("be nice")}},
			},
			expected: "",
		},
		{
			name: "picks most recent user message",
			messages: []Message{
				{Role: RoleUser, Parts: []Part{TextPart("first")}},
				{Role: RoleAssistant, Parts: []Part{TextPart("answer")}},
				{Role: RoleUser, Parts: []Part{TextPart("second")}},
				{Role: RoleAssistant, Parts: []Part{TextPart("another answer")}},
			},
			expected: "second",
		},
		{
			name: "concatenates text parts in order and trims",
			messages: []Message{
				{Role: RoleUser, Parts: []Part{
					TextPart("  SELECT "),
					{Type: "file"},
					TextPart("* FROM t  "),
				}},
			},
			expected: "SELECT * FROM t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LatestUserText(tt.messages))
		})
	}
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	body := `[
		{"id":"m1","role":"user","parts":[{"type":"text","text":"How do I pivot?"}]},
		{"id":"m2","role":"assistant","parts":[{"type":"step-start"},{"type":"text","text":"Use CASE."},{"type":"reasoning","text":"think","providerMetadata":{"openai":{"itemId":"rs_1"}}}]}
	]`

	var messages []Message
	require.NoError(t, json.Unmarshal([]byte(body), &messages))

	encoded, err := json.Marshal(messages)
	require.NoError(t, err)

	var decoded []Message
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	require.Len(t, decoded, 2)
	for i := range messages {
		assert.Equal(t, messages[i].ID, decoded[i].ID)
		assert.Equal(t, messages[i].Role, decoded[i].Role)
		assert.Equal(t, messages[i].Text(), decoded[i].Text())
		require.Len(t, decoded[i].Parts, len(messages[i].Parts))
		for j := range messages[i].Parts {
			assert.Equal(t, messages[i].Parts[j].Type, decoded[i].Parts[j].Type)
		}
	}
	assert.Contains(t, string(encoded), `"providerMetadata"`)
}
