package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

func TestResolveNarrativeStructured(t *testing.T) {
	raw := `Here is your answer:
{"title":"The Great Fire","narrative":"In 1872 the market district burned.","cited_sources":[1,2,3]}`

	result := resolveNarrative(raw)
	if result.Kind != domain.NarrativeStructured {
		t.Fatalf("expected structured kind, got %s", result.Kind)
	}
	if result.Structured.Title != "The Great Fire" {
		t.Fatalf("unexpected title %q", result.Structured.Title)
	}
	if len(result.Structured.CitedSources) != 3 {
		t.Fatalf("expected 3 cited sources, got %d", len(result.Structured.CitedSources))
	}
}

func TestResolveNarrativeWrapsUnparsableOutput(t *testing.T) {
	raw := "The archive suggests the fire began near the granary."

	result := resolveNarrative(raw)
	if result.Kind != domain.NarrativePlain {
		t.Fatalf("expected plain kind, got %s", result.Kind)
	}
	if result.Raw != raw {
		t.Fatalf("expected raw text preserved")
	}
}

func TestResolveNarrativeRejectsJSONWithoutNarrative(t *testing.T) {
	result := resolveNarrative(`{"title":"only a title"}`)
	if result.Kind != domain.NarrativePlain {
		t.Fatalf("json without narrative text must fall back to plain, got %s", result.Kind)
	}
}

func TestBuildNarrativePromptTagsOrdinals(t *testing.T) {
	blocks := reduceByDocument(chunksForDoc("a", 2, 0.9), 10)
	blocks = append(blocks, reduceByDocument(chunksForDoc("b", 1, 0.8), 10)...)
	blocks[1].Ordinal = 2

	prompt := buildNarrativePrompt("when did the market open", blocks, 3)
	if !strings.Contains(prompt, "[1] Document a") {
		t.Fatalf("expected ordinal tag for first block in prompt")
	}
	if !strings.Contains(prompt, "[2] Document b") {
		t.Fatalf("expected ordinal tag for second block in prompt")
	}
	if !strings.Contains(prompt, "when did the market open") {
		t.Fatalf("expected question in prompt")
	}
	// Two surviving sources cannot satisfy a three-source minimum.
	if strings.Contains(prompt, "at least 3") {
		t.Fatalf("minimum-source guidance must turn advisory for thin context")
	}
}

func TestBuildNarrativePromptEnforcesMinimumWhenPossible(t *testing.T) {
	var chunks []domain.RetrievedChunk
	chunks = append(chunks, chunksForDoc("a", 1, 0.9)...)
	chunks = append(chunks, chunksForDoc("b", 1, 0.8)...)
	chunks = append(chunks, chunksForDoc("c", 1, 0.7)...)
	blocks := reduceByDocument(chunks, 10)

	prompt := buildNarrativePrompt("q", blocks, 3)
	if !strings.Contains(prompt, "at least 3 distinct sources") {
		t.Fatalf("expected enforced minimum-source guidance")
	}
}
