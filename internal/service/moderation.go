package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/telemetry"
	"go.uber.org/zap"
)

// Classifier scores text against the moderation taxonomy.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// FailurePolicy decides what happens to a message when the classifier fails.
type FailurePolicy string

const (
	FailClosed FailurePolicy = "closed"
	FailOpen   FailurePolicy = "open"
)

// ParseFailurePolicy accepts "closed" or "open"; empty means closed.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailClosed:
		return FailClosed, nil
	case FailOpen:
		return FailOpen, nil
	}
	return "", fmt.Errorf("unknown moderation failure policy %q", s)
}

const DefaultDenialMessage = "Your message violates our guidelines. I can't answer that."

const selfHarmHelp = " If you're struggling, please reach out to a mental health professional or crisis helpline."

var denialMessages = map[domain.ModerationCategory]string{
	domain.CategorySexual:                "I can't discuss explicit sexual content. Please ask something else.",
	domain.CategorySexualMinors:          "I can't discuss content involving minors in a sexual context. Please ask something else.",
	domain.CategoryHarassment:            "I can't engage with harassing content. Please be respectful.",
	domain.CategoryHarassmentThreatening: "I can't engage with threatening or harassing content. Please be respectful.",
	domain.CategoryHate:                  "I can't engage with hateful content. Please be respectful.",
	domain.CategoryHateThreatening:       "I can't engage with threatening hate speech. Please be respectful.",
	domain.CategoryIllicit:               "I can't discuss illegal activities. Please ask something else.",
	domain.CategoryIllicitViolent:        "I can't discuss violent illegal activities. Please ask something else.",
	domain.CategorySelfHarm:              "I can't discuss self-harm." + selfHarmHelp,
	domain.CategorySelfHarmIntent:        "I can't discuss self-harm intentions." + selfHarmHelp,
	domain.CategorySelfHarmInstructions:  "I can't provide instructions related to self-harm." + selfHarmHelp,
	domain.CategoryViolence:              "I can't discuss violent content. Please ask something else.",
	domain.CategoryViolenceGraphic:       "I can't discuss graphic violent content. Please ask something else.",
}

// DenialMessage returns the user-facing refusal for category.
func DenialMessage(category domain.ModerationCategory) string {
	if msg, ok := denialMessages[category]; ok {
		return msg
	}
	return DefaultDenialMessage
}

// ModerationService gates user input before any model call.
type ModerationService struct {
	classifier Classifier
	policy     FailurePolicy
	logger     *zap.Logger
}

func NewModerationService(classifier Classifier, policy FailurePolicy, logger *zap.Logger) *ModerationService {
	if policy == "" {
		policy = FailClosed
	}
	return &ModerationService{classifier: classifier, policy: policy, logger: logger}
}

// Check classifies text. The first flagged category in taxonomy order wins.
func (s *ModerationService) Check(ctx context.Context, text string) domain.ModerationResult {
	if strings.TrimSpace(text) == "" {
		return domain.ModerationResult{}
	}

	ctx, span := telemetry.StartSpan(ctx, "ModerationService.Check", telemetry.SpanAttributes{
		Operation: "moderate",
	})
	defer span.End()

	verdict, err := s.classifier.Classify(ctx, text)
	if err != nil {
		telemetry.ModerationFailures.WithLabelValues(string(s.policy)).Inc()
		s.logger.Error("moderation classifier failed",
			zap.String("policy", string(s.policy)),
			zap.Error(err),
		)
		span.SetError(fmt.Errorf("%w: %w", domain.ErrModerationUnavailable, err))

		if s.policy == FailOpen {
			return domain.ModerationResult{}
		}
		telemetry.ModerationDenials.WithLabelValues(string(domain.CategoryUnavailable)).Inc()
		return domain.ModerationResult{
			Flagged:       true,
			Category:      domain.CategoryUnavailable,
			DenialMessage: DefaultDenialMessage,
		}
	}

	if !verdict.Flagged {
		return domain.ModerationResult{}
	}

	result := domain.ModerationResult{Flagged: true, DenialMessage: DefaultDenialMessage}
	for _, category := range domain.ModerationCategories {
		if verdict.Categories[category] {
			result.Category = category
			result.DenialMessage = DenialMessage(category)
			break
		}
	}

	label := string(result.Category)
	if label == "" {
		label = "unknown"
	}
	telemetry.ModerationDenials.WithLabelValues(label).Inc()
	s.logger.Info("message denied by moderation", zap.String("category", label))

	return result
}
