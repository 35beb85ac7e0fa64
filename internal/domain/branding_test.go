package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBranding(t *testing.T) {
	b := DefaultBranding()

	assert.Equal(t, "SQLSherpa", b.AIName)
	assert.Contains(t, b.WelcomeMessage, "SQLSherpa")
	assert.Len(t, b.SuggestedPrompts, 6)
	assert.NotEmpty(t, b.PublicDisclaimer)
}

func TestBranding_Merge(t *testing.T) {
	base := DefaultBranding()

	merged := base.Merge(Branding{
		OwnerName:        "Data Team",
		SuggestedPrompts: []string{"Explain CTEs"},
	})

	assert.Equal(t, "Data Team", merged.OwnerName)
	assert.Equal(t, []string{"Explain CTEs"}, merged.SuggestedPrompts)
	assert.Equal(t, base.AIName, merged.AIName)
	assert.Equal(t, base.WelcomeMessage, merged.WelcomeMessage)
	assert.Len(t, base.SuggestedPrompts, 6)
}
