package domain

// Branding holds the static copy shown by the chat UI and used in prompts.
type Branding struct {
	AIName           string   `json:"ai_name" yaml:"ai_name"`
	OwnerName        string   `json:"owner_name" yaml:"owner_name"`
	WelcomeMessage   string   `json:"welcome_message" yaml:"welcome_message"`
	ClearChatText    string   `json:"clear_chat_text" yaml:"clear_chat_text"`
	SuggestedPrompts []string `json:"suggested_prompts" yaml:"suggested_prompts"`
	PublicDisclaimer string   `json:"public_disclaimer" yaml:"public_disclaimer"`
}

// DefaultBranding returns the built-in SQLSherpa branding
func DefaultBranding() Branding {
	name := "SQLSherpa"
	return Branding{
		AIName:         name,
		OwnerName:      "Shreya Agarwal",
		WelcomeMessage: "Hi! I'm " + name + ", your SQL expert assistant. I can help you write queries, debug errors, and optimize SQL across PostgreSQL, MySQL, BigQuery, Snowflake, and SQL Server.",
		ClearChatText:  "New",
		SuggestedPrompts: []string{
			"Write a SQL query to find top 5 customers by total spend in the last 90 days.",
			"Debug this SQL error and fix my query: <paste query + error>",
			"Explain window functions with an example using ROW_NUMBER().",
			"Optimize this query for Postgres: <paste query>",
			"Convert this query from MySQL to BigQuery: <paste query>",
			"Help me design the correct joins: here are my tables and keys...",
		},
		PublicDisclaimer: name + " provides educational guidance only. Validate queries before running in production. Do not use on systems you do not own or have permission to access.",
	}
}

// Merge returns b with every non-empty field of override applied.
func (b Branding) Merge(override Branding) Branding {
	if override.AIName != "" {
		b.AIName = override.AIName
	}
	if override.OwnerName != "" {
		b.OwnerName = override.OwnerName
	}
	if override.WelcomeMessage != "" {
		b.WelcomeMessage = override.WelcomeMessage
	}
	if override.ClearChatText != "" {
		b.ClearChatText = override.ClearChatText
	}
	if len(override.SuggestedPrompts) > 0 {
		b.SuggestedPrompts = append([]string(nil), override.SuggestedPrompts...)
	}
	if override.PublicDisclaimer != "" {
		b.PublicDisclaimer = override.PublicDisclaimer
	}
	return b
}
