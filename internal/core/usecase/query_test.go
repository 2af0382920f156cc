package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

type knowledgeBaseFake struct {
	chunks []domain.RetrievedChunk
	err    error
	topK   int
}

func (f *knowledgeBaseFake) Retrieve(_ context.Context, _ string, topK int) ([]domain.RetrievedChunk, error) {
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type generatorFake struct {
	output string
	err    error
	prompt string
}

func (f *generatorFake) GenerateStream(_ context.Context, prompt string, onFragment func(string) error) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	half := len(f.output) / 2
	_ = onFragment(f.output[:half])
	_ = onFragment(f.output[half:])
	return f.output, nil
}

type turnRecorderFake struct {
	turns []domain.ConversationTurn
	err   error
}

func (f *turnRecorderFake) AppendTurn(_ context.Context, turn domain.ConversationTurn) error {
	if f.err != nil {
		return f.err
	}
	f.turns = append(f.turns, turn)
	return nil
}

type analyticsFake struct {
	events []domain.AnalyticsEvent
}

func (f *analyticsFake) RecordEvent(_ context.Context, event domain.AnalyticsEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *analyticsFake) ListEvents(context.Context, time.Time, int) ([]domain.AnalyticsEvent, error) {
	return f.events, nil
}

type sinkFake struct {
	fragments   []string
	completed   *domain.Answer
	fragmentErr error
}

func (f *sinkFake) Fragment(text string) error {
	if f.fragmentErr != nil {
		return f.fragmentErr
	}
	f.fragments = append(f.fragments, text)
	return nil
}

func (f *sinkFake) Complete(answer *domain.Answer) error {
	f.completed = answer
	return nil
}

type categorizerStub struct{}

func (categorizerStub) CategorizeQuery(string) string { return "events" }

type pipelineFixture struct {
	pipeline  *QueryPipeline
	kb        *knowledgeBaseFake
	generator *generatorFake
	turns     *turnRecorderFake
	analytics *analyticsFake
	tokens    *tokenStoreFake
}

func threeDocumentChunks() []domain.RetrievedChunk {
	var chunks []domain.RetrievedChunk
	chunks = append(chunks, chunksForDoc("a", 2, 0.9)...)
	chunks = append(chunks, chunksForDoc("b", 2, 0.8)...)
	chunks = append(chunks, chunksForDoc("c", 2, 0.7)...)
	return chunks
}

func newPipelineFixture(kb *knowledgeBaseFake, generator *generatorFake) *pipelineFixture {
	tokens := newTokenStoreFake()
	turns := &turnRecorderFake{}
	analytics := &analyticsFake{}

	pipeline := NewQueryPipeline(
		NewDeduplicator(10*time.Second),
		NewLanguageNormalizer(&translatorFake{}, "en"),
		kb,
		generator,
		NewReferenceVault(tokens, newStorageFake(), time.Hour, 5*time.Minute),
		turns,
		analytics,
		categorizerStub{},
		nil,
		QueryPipelineConfig{RetrievalTopK: 50, MaxChunksPerDocument: 10, MinCitedSources: 3},
	)

	return &pipelineFixture{
		pipeline:  pipeline,
		kb:        kb,
		generator: generator,
		turns:     turns,
		analytics: analytics,
		tokens:    tokens,
	}
}

const structuredOutput = `{"title":"The Fire","narrative":"Three accounts describe the same night.","cited_sources":[1,2,3]}`

func TestQueryPipelineStreamsAndBindsCitations(t *testing.T) {
	fx := newPipelineFixture(
		&knowledgeBaseFake{chunks: threeDocumentChunks()},
		&generatorFake{output: structuredOutput},
	)
	sink := &sinkFake{}

	answer, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "what happened in the fire", Language: "en"}, sink)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if len(sink.fragments) != 2 {
		t.Fatalf("expected 2 forwarded fragments, got %d", len(sink.fragments))
	}
	if sink.completed == nil {
		t.Fatalf("expected completion event")
	}
	if answer.Fallback {
		t.Fatalf("unexpected fallback")
	}
	if fx.kb.topK != 50 {
		t.Fatalf("expected over-fetch of 50, got %d", fx.kb.topK)
	}

	if len(answer.Citations) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(answer.Citations))
	}
	seen := map[int]bool{}
	for _, citation := range answer.Citations {
		if citation.Ordinal < 1 || citation.Ordinal > 3 {
			t.Fatalf("citation ordinal %d outside surviving range", citation.Ordinal)
		}
		if seen[citation.Ordinal] {
			t.Fatalf("duplicate citation ordinal %d", citation.Ordinal)
		}
		seen[citation.Ordinal] = true
		if citation.ObfuscatedRef == "" {
			t.Fatalf("expected minted reference for ordinal %d", citation.Ordinal)
		}
	}

	if len(fx.turns.turns) != 1 {
		t.Fatalf("expected one recorded turn, got %d", len(fx.turns.turns))
	}
	if len(fx.analytics.events) != 1 || !fx.analytics.events[0].Success {
		t.Fatalf("expected one success analytics event")
	}
	if fx.analytics.events[0].CitationCount != 3 {
		t.Fatalf("expected citation count 3, got %d", fx.analytics.events[0].CitationCount)
	}
}

func TestQueryPipelineGenerationFailureFallsBack(t *testing.T) {
	fx := newPipelineFixture(
		&knowledgeBaseFake{chunks: threeDocumentChunks()},
		&generatorFake{err: errors.New("model down")},
	)
	sink := &sinkFake{}

	answer, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "q", Language: "en"}, sink)
	if err != nil {
		t.Fatalf("generation failure must not surface, got %v", err)
	}

	if !answer.Fallback {
		t.Fatalf("expected fallback answer")
	}
	if sink.completed == nil {
		t.Fatalf("stream must still end with a completion event")
	}
	if sink.completed.Narrative.Narrative == "" {
		t.Fatalf("fallback narrative must be non-empty")
	}
	if len(fx.analytics.events) != 1 || fx.analytics.events[0].Success {
		t.Fatalf("expected analytics event with success=false")
	}
	if len(fx.turns.turns) != 1 {
		t.Fatalf("fallback turn must still be recorded")
	}
}

func TestQueryPipelineRetrievalFailureFallsBack(t *testing.T) {
	fx := newPipelineFixture(
		&knowledgeBaseFake{err: errors.New("kb down")},
		&generatorFake{output: structuredOutput},
	)
	sink := &sinkFake{}

	answer, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "q", Language: "en"}, sink)
	if err != nil {
		t.Fatalf("retrieval failure must not surface, got %v", err)
	}
	if !answer.Fallback {
		t.Fatalf("expected fallback answer")
	}
}

func TestQueryPipelineZeroHitsStillAnswers(t *testing.T) {
	fx := newPipelineFixture(
		&knowledgeBaseFake{},
		&generatorFake{output: `{"title":"t","narrative":"The archive holds nothing on this."}`},
	)

	answer, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "q", Language: "en"}, &sinkFake{})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Fallback {
		t.Fatalf("zero hits is empty context, not a failure")
	}
	if len(answer.Citations) != 0 {
		t.Fatalf("no surviving sources means no citations")
	}
}

func TestQueryPipelineRejectsEmptyMessage(t *testing.T) {
	fx := newPipelineFixture(&knowledgeBaseFake{}, &generatorFake{})
	_, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "   "}, &sinkFake{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestQueryPipelineRejectsDuplicate(t *testing.T) {
	fx := newPipelineFixture(
		&knowledgeBaseFake{chunks: threeDocumentChunks()},
		&generatorFake{output: structuredOutput},
	)
	req := domain.QueryRequest{Message: "same question", UserID: "u1", SessionID: "s1", Language: "en"}

	if _, err := fx.pipeline.Ask(context.Background(), req, &sinkFake{}); err != nil {
		t.Fatalf("first request error = %v", err)
	}
	_, err := fx.pipeline.Ask(context.Background(), req, &sinkFake{})
	if !domain.IsKind(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestQueryPipelineDropsUnknownOrdinals(t *testing.T) {
	fx := newPipelineFixture(
		&knowledgeBaseFake{chunks: threeDocumentChunks()},
		&generatorFake{output: `{"title":"t","narrative":"n","cited_sources":[1,2,9]}`},
	)

	answer, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "q", Language: "en"}, &sinkFake{})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(answer.Citations) != 2 {
		t.Fatalf("expected unknown ordinal dropped, got %d citations", len(answer.Citations))
	}
}

func TestQueryPipelineKeepsCitationWhenMintFails(t *testing.T) {
	fx := newPipelineFixture(
		&knowledgeBaseFake{chunks: threeDocumentChunks()},
		&generatorFake{output: structuredOutput},
	)
	fx.tokens.putErr = errors.New("store down")

	answer, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "q", Language: "en"}, &sinkFake{})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(answer.Citations) != 3 {
		t.Fatalf("citation completeness beats link availability, got %d", len(answer.Citations))
	}
	for _, citation := range answer.Citations {
		if citation.ObfuscatedRef != "" {
			t.Fatalf("expected empty reference on mint failure")
		}
	}
}

func TestQueryPipelineWrapsUnparsableModelOutput(t *testing.T) {
	raw := "The granary fire started on a windy night."
	fx := newPipelineFixture(
		&knowledgeBaseFake{chunks: threeDocumentChunks()},
		&generatorFake{output: raw},
	)

	answer, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "q", Language: "en"}, &sinkFake{})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Fallback {
		t.Fatalf("plain wrap is not a fallback")
	}
	if answer.Narrative.Narrative != raw {
		t.Fatalf("expected raw text wrapped as narrative, got %q", answer.Narrative.Narrative)
	}
}

func TestQueryPipelineTranslatesInAndOut(t *testing.T) {
	fx := newPipelineFixture(
		&knowledgeBaseFake{chunks: threeDocumentChunks()},
		&generatorFake{output: structuredOutput},
	)

	answer, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "co sie stalo", Language: "pl"}, &sinkFake{})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.Language != "pl" {
		t.Fatalf("expected answer language pl, got %q", answer.Language)
	}
	if !strings.HasPrefix(answer.Narrative.Narrative, "[pl]") {
		t.Fatalf("expected localized narrative, got %q", answer.Narrative.Narrative)
	}
	if !strings.Contains(fx.generator.prompt, "[en]co sie stalo") {
		t.Fatalf("expected canonical question in prompt")
	}
	if fx.turns.turns[0].DetectedLanguage != "pl" {
		t.Fatalf("expected detected language recorded")
	}
}

func TestQueryPipelineClientDisconnectStillRecordsTurn(t *testing.T) {
	fx := newPipelineFixture(
		&knowledgeBaseFake{chunks: threeDocumentChunks()},
		&generatorFake{output: structuredOutput},
	)
	sink := &sinkFake{fragmentErr: errors.New("client gone")}

	if _, err := fx.pipeline.Ask(context.Background(), domain.QueryRequest{Message: "q", Language: "en"}, sink); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(fx.turns.turns) != 1 {
		t.Fatalf("turn must be recorded despite disconnect")
	}
	if len(fx.analytics.events) != 1 {
		t.Fatalf("analytics must be recorded despite disconnect")
	}
}
