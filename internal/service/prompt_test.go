package service

import (
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, time.October, 18, 15, 4, 0, 0, time.UTC)
}

func TestPromptAssembler_Build_SectionOrder(t *testing.T) {
	a := NewPromptAssembler(domain.DefaultBranding(), fixedClock, nil)
	prompt := a.Build("<results>ctx</results>")

	require.True(t, strings.HasPrefix(prompt, "You are SQLSherpa, a publicly accessible AI assistant designed by Shreya Agarwal"))

	tags := []string{
		"<sql_expertise>", "<tool_calling>", "<tone_style>", "<guardrails>",
		"<disclaimer>", "<citations>", "<course_context>", "<output_format>",
		"<date_time>", "<rag_instructions>",
	}
	last := -1
	for _, tag := range tags {
		idx := strings.Index(prompt, tag)
		require.NotEqual(t, -1, idx, tag)
		assert.Greater(t, idx, last, tag)
		last = idx
	}
	assert.True(t, strings.HasSuffix(prompt, "</rag_instructions>"))
}

func TestPromptAssembler_Build_WithContext(t *testing.T) {
	a := NewPromptAssembler(domain.DefaultBranding(), fixedClock, nil)
	prompt := a.Build("<results>[1] Joins</results>")

	assert.Contains(t, prompt, "<rag_instructions>\n"+ragContextInstructions+"\n\n<results>[1] Joins</results>\n</rag_instructions>")
	assert.NotContains(t, prompt, ragEmptyInstructions)
}

func TestPromptAssembler_Build_EmptyContext(t *testing.T) {
	a := NewPromptAssembler(domain.DefaultBranding(), fixedClock, nil)

	for _, ctx := range []string{"", "  \n"} {
		prompt := a.Build(ctx)
		assert.Contains(t, prompt, "<rag_instructions>\n"+ragEmptyInstructions+"\n</rag_instructions>")
		assert.NotContains(t, prompt, "You MUST use the following retrieved context")
	}
}

func TestPromptAssembler_DateAndTime(t *testing.T) {
	a := NewPromptAssembler(domain.DefaultBranding(), fixedClock, nil)
	assert.Equal(t,
		"The day today is Sunday, October 18, 2026 and the time right now is 3:04 PM UTC.",
		a.DateAndTime(),
	)

	loc := time.FixedZone("EST", -5*60*60)
	a = NewPromptAssembler(domain.DefaultBranding(), fixedClock, loc)
	assert.Equal(t,
		"The day today is Sunday, October 18, 2026 and the time right now is 10:04 AM EST.",
		a.DateAndTime(),
	)
}

func TestPromptAssembler_Branding(t *testing.T) {
	b := domain.DefaultBranding().Merge(domain.Branding{
		AIName:           "QueryBuddy",
		OwnerName:        "Data Team",
		PublicDisclaimer: "Internal use only.",
	})
	prompt := NewPromptAssembler(b, fixedClock, nil).Build("")

	assert.True(t, strings.HasPrefix(prompt, "You are QueryBuddy, a publicly accessible AI assistant designed by Data Team"))
	assert.Contains(t, prompt, "<disclaimer>\nInternal use only.\n</disclaimer>")
}

func TestPromptAssembler_Deterministic(t *testing.T) {
	a := NewPromptAssembler(domain.DefaultBranding(), fixedClock, nil)
	assert.Equal(t, a.Build("x"), a.Build("x"))
}
