package domain

// ModerationCategory is a content category reported by the moderation classifier
type ModerationCategory string

const (
	CategorySexual                ModerationCategory = "sexual"
	CategorySexualMinors          ModerationCategory = "sexual/minors"
	CategoryHarassment            ModerationCategory = "harassment"
	CategoryHarassmentThreatening ModerationCategory = "harassment/threatening"
	CategoryHate                  ModerationCategory = "hate"
	CategoryHateThreatening       ModerationCategory = "hate/threatening"
	CategoryIllicit               ModerationCategory = "illicit"
	CategoryIllicitViolent        ModerationCategory = "illicit/violent"
	CategorySelfHarm              ModerationCategory = "self-harm"
	CategorySelfHarmIntent        ModerationCategory = "self-harm/intent"
	CategorySelfHarmInstructions  ModerationCategory = "self-harm/instructions"
	CategoryViolence              ModerationCategory = "violence"
	CategoryViolenceGraphic       ModerationCategory = "violence/graphic"

	// CategoryUnavailable marks a denial caused by a classifier failure.
	CategoryUnavailable ModerationCategory = "moderation_unavailable"
)

// ModerationCategories lists the taxonomy in the order categories are checked.
var ModerationCategories = []ModerationCategory{
	CategorySexual,
	CategorySexualMinors,
	CategoryHarassment,
	CategoryHarassmentThreatening,
	CategoryHate,
	CategoryHateThreatening,
	CategoryIllicit,
	CategoryIllicitViolent,
	CategorySelfHarm,
	CategorySelfHarmIntent,
	CategorySelfHarmInstructions,
	CategoryViolence,
	CategoryViolenceGraphic,
}

// ModerationResult is the outcome of classifying one text span.
type ModerationResult struct {
	Flagged       bool
	Category      ModerationCategory
	DenialMessage string
}

// Classification is the raw classifier verdict before denial messages are applied.
type Classification struct {
	Flagged    bool
	Categories map[ModerationCategory]bool
}
