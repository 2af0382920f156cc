package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

func buildNarrativePrompt(question string, blocks []domain.ContextBlock, minSources int) string {
	var contextBuilder strings.Builder
	for _, block := range blocks {
		contextBuilder.WriteString(fmt.Sprintf("[%d] %s\n", block.Ordinal, block.Title))
		for _, chunk := range block.Chunks {
			contextBuilder.WriteString(fmt.Sprintf("(score=%.3f) %s\n", chunk.Score, chunk.Text))
		}
		contextBuilder.WriteString("\n")
	}

	sourceGuidance := fmt.Sprintf("Cite at least %d distinct sources by their [ordinal].", minSources)
	if len(blocks) < minSources {
		// Diversity cannot be manufactured from a thin result set; the
		// minimum becomes advisory.
		sourceGuidance = "Cite every source that informed the answer by its [ordinal]."
	}

	return fmt.Sprintf(`You are a historian answering questions from a document archive.
Answer only from the numbered context below. %s
Return a strict JSON object with keys:
title (string), narrative (string), timeline (string), locations (string),
key_people (string), why_it_matters (string), lessons_and_themes (array of strings),
modern_reflection (string), explore_further (array of strings),
cited_sources (array of ordinal numbers).
No markdown, no extra keys.

Question:
%s

Context:
%s`, sourceGuidance, question, contextBuilder.String())
}

// resolveNarrative is called exactly once, after the stream has ended.
// Output that cannot be parsed into the structured schema is wrapped as a
// plain narrative instead of failing.
func resolveNarrative(raw string) domain.NarrativeResult {
	candidate := extractJSONObject(raw)

	var structured domain.StructuredNarrative
	if err := json.Unmarshal([]byte(candidate), &structured); err == nil && strings.TrimSpace(structured.Narrative) != "" {
		return domain.NarrativeResult{
			Kind:       domain.NarrativeStructured,
			Structured: &structured,
		}
	}

	return domain.NarrativeResult{
		Kind: domain.NarrativePlain,
		Raw:  strings.TrimSpace(raw),
	}
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// fallbackNarrative is the fixed answer substituted for any irrecoverable
// pipeline failure. Same schema as a real answer, so clients need no
// separate error-rendering path.
func fallbackNarrative() domain.StructuredNarrative {
	return domain.StructuredNarrative{
		Title:     "We could not complete this answer",
		Narrative: "We are sorry - something went wrong while researching your question in the archive. Please try again in a few moments. Your question was recorded and no further action is needed.",
	}
}
