package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
	"github.com/kirillkom/archive-assistant/internal/core/ports"
)

// LanguageNormalizer translates queries into the canonical working language
// and localizes finished narratives back. Both legs degrade to a no-op on
// translation failure; an answer in the canonical language beats no answer.
type LanguageNormalizer struct {
	translator ports.Translator
	canonical  string
}

func NewLanguageNormalizer(translator ports.Translator, canonical string) *LanguageNormalizer {
	if canonical == "" {
		canonical = "en"
	}
	return &LanguageNormalizer{
		translator: translator,
		canonical:  canonical,
	}
}

func (n *LanguageNormalizer) Canonical() string {
	return n.canonical
}

// ToCanonical returns the canonical-language text and the detected source
// language. requestedLang may be empty, in which case detection is delegated
// to the translation service.
func (n *LanguageNormalizer) ToCanonical(ctx context.Context, text, requestedLang string) (string, string) {
	requestedLang = strings.ToLower(strings.TrimSpace(requestedLang))
	if requestedLang == n.canonical {
		return text, n.canonical
	}

	translated, detected, err := n.translator.Translate(ctx, text, requestedLang, n.canonical)
	if err != nil {
		slog.Warn("inbound_translation_failed", "error", err)
		if requestedLang == "" {
			return text, n.canonical
		}
		return text, requestedLang
	}

	if requestedLang != "" {
		detected = requestedLang
	}
	if detected == "" {
		detected = n.canonical
	}
	return translated, strings.ToLower(detected)
}

// LocalizeNarrative translates every free-text field back to the target
// language, field by field. List fields keep their cardinality: elements are
// translated in place and a failed element keeps its canonical text.
func (n *LanguageNormalizer) LocalizeNarrative(ctx context.Context, narrative domain.StructuredNarrative, target string) domain.StructuredNarrative {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" || target == n.canonical {
		return narrative
	}

	out := narrative
	out.Title = n.localizeField(ctx, narrative.Title, target)
	out.Narrative = n.localizeField(ctx, narrative.Narrative, target)
	out.Timeline = n.localizeField(ctx, narrative.Timeline, target)
	out.Locations = n.localizeField(ctx, narrative.Locations, target)
	out.KeyPeople = n.localizeField(ctx, narrative.KeyPeople, target)
	out.WhyItMatters = n.localizeField(ctx, narrative.WhyItMatters, target)
	out.ModernReflection = n.localizeField(ctx, narrative.ModernReflection, target)
	out.LessonsAndThemes = n.localizeList(ctx, narrative.LessonsAndThemes, target)
	out.ExploreFurther = n.localizeList(ctx, narrative.ExploreFurther, target)
	return out
}

func (n *LanguageNormalizer) localizeField(ctx context.Context, text, target string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	translated, _, err := n.translator.Translate(ctx, text, n.canonical, target)
	if err != nil {
		slog.Warn("outbound_translation_failed", "target", target, "error", err)
		return text
	}
	return translated
}

func (n *LanguageNormalizer) localizeList(ctx context.Context, items []string, target string) []string {
	if len(items) == 0 {
		return items
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = n.localizeField(ctx, item, target)
	}
	return out
}
