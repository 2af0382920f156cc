package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
	"github.com/kirillkom/archive-assistant/internal/core/ports"
)

const excerptMaxRunes = 200

// QueryCategorizer assigns an analytics category to a canonical-language
// query. Satisfied by config.Lookups.
type QueryCategorizer interface {
	CategorizeQuery(canonicalText string) string
}

// QueryObserver receives pipeline telemetry. Implementations must be
// non-blocking.
type QueryObserver interface {
	QueryFinished(language, category string, success bool, citationCount int, duration time.Duration)
	DedupRejected()
}

type QueryPipelineConfig struct {
	RetrievalTopK        int
	MaxChunksPerDocument int
	MinCitedSources      int
}

func (c QueryPipelineConfig) normalize() QueryPipelineConfig {
	out := c
	if out.RetrievalTopK <= 0 {
		out.RetrievalTopK = 50
	}
	if out.MaxChunksPerDocument <= 0 {
		out.MaxChunksPerDocument = 10
	}
	if out.MinCitedSources <= 0 {
		out.MinCitedSources = 3
	}
	return out
}

// QueryPipeline turns one question into a streamed, cited, localized
// narrative. Every external failure past input validation is absorbed: the
// sink always receives a completion event with an answer-shaped payload.
type QueryPipeline struct {
	dedup       *Deduplicator
	language    *LanguageNormalizer
	kb          ports.KnowledgeBase
	generator   ports.NarrativeGenerator
	vault       *ReferenceVault
	turns       ports.TurnRecorder
	analytics   ports.AnalyticsRecorder
	categorizer QueryCategorizer
	observer    QueryObserver

	cfg QueryPipelineConfig
	now func() time.Time
}

func NewQueryPipeline(
	dedup *Deduplicator,
	language *LanguageNormalizer,
	kb ports.KnowledgeBase,
	generator ports.NarrativeGenerator,
	vault *ReferenceVault,
	turns ports.TurnRecorder,
	analytics ports.AnalyticsRecorder,
	categorizer QueryCategorizer,
	observer QueryObserver,
	cfg QueryPipelineConfig,
) *QueryPipeline {
	return &QueryPipeline{
		dedup:       dedup,
		language:    language,
		kb:          kb,
		generator:   generator,
		vault:       vault,
		turns:       turns,
		analytics:   analytics,
		categorizer: categorizer,
		observer:    observer,
		cfg:         cfg.normalize(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Ask runs the full query pipeline. Validation and duplicate errors are
// surfaced to the caller; everything downstream degrades to the fixed
// fallback answer instead of failing.
func (p *QueryPipeline) Ask(ctx context.Context, req domain.QueryRequest, sink ports.StreamSink) (*domain.Answer, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("message is required"))
	}
	if err := p.dedup.Check(req.UserID, req.SessionID, req.Message); err != nil {
		if p.observer != nil {
			p.observer.DedupRejected()
		}
		return nil, err
	}

	queryID := uuid.NewString()
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	start := p.now()

	canonicalText, detectedLang := p.language.ToCanonical(ctx, req.Message, req.Language)

	narrative, citations, pipelineErr := p.synthesize(ctx, canonicalText, sink)
	fallback := pipelineErr != nil
	if fallback {
		slog.Error("query_pipeline_fallback", "query_id", queryID, "error", pipelineErr)
		narrative = fallbackNarrative()
		citations = nil
	}

	narrative = p.language.LocalizeNarrative(ctx, narrative, detectedLang)

	answer := &domain.Answer{
		ConversationID: conversationID,
		Narrative:      narrative,
		Citations:      citations,
		Language:       detectedLang,
		Fallback:       fallback,
	}

	if sink != nil {
		if err := sink.Complete(answer); err != nil {
			slog.Warn("stream_completion_not_delivered", "query_id", queryID, "error", err)
		}
	}

	p.record(ctx, queryID, req, answer, canonicalText, detectedLang, start)
	return answer, nil
}

// synthesize covers retrieval through citation binding; its error return
// selects the fallback answer one level up.
func (p *QueryPipeline) synthesize(ctx context.Context, canonicalText string, sink ports.StreamSink) (domain.StructuredNarrative, []domain.SourceCitation, error) {
	chunks, err := p.kb.Retrieve(ctx, canonicalText, p.cfg.RetrievalTopK)
	if err != nil {
		return domain.StructuredNarrative{}, nil, fmt.Errorf("retrieve context: %w", err)
	}

	blocks := reduceByDocument(chunks, p.cfg.MaxChunksPerDocument)
	prompt := buildNarrativePrompt(canonicalText, blocks, p.cfg.MinCitedSources)

	raw, err := p.generator.GenerateStream(ctx, prompt, p.forwarder(sink))
	if err != nil {
		return domain.StructuredNarrative{}, nil, fmt.Errorf("generate narrative: %w", err)
	}

	result := resolveNarrative(raw)
	switch result.Kind {
	case domain.NarrativeStructured:
		citations := p.bindCitations(ctx, result.Structured.CitedSources, blocks)
		return *result.Structured, citations, nil
	default:
		// Narrative-only wrap: the model ignored the schema, the text is
		// still an answer.
		return domain.StructuredNarrative{Narrative: result.Raw}, nil, nil
	}
}

// forwarder forwards fragments until the first sink failure (client gone),
// then keeps accumulating silently so persistence still sees the full turn.
func (p *QueryPipeline) forwarder(sink ports.StreamSink) func(string) error {
	if sink == nil {
		return func(string) error { return nil }
	}
	stopped := false
	return func(fragment string) error {
		if stopped {
			return nil
		}
		if err := sink.Fragment(fragment); err != nil {
			stopped = true
			slog.Warn("stream_forwarding_stopped", "error", err)
		}
		return nil
	}
}

// bindCitations cross-references the model's self-reported ordinals against
// the surviving context blocks. A reference whose token cannot be minted is
// kept with an empty reference: the citation list stays complete even when a
// link is unavailable.
func (p *QueryPipeline) bindCitations(ctx context.Context, citedOrdinals []int, blocks []domain.ContextBlock) []domain.SourceCitation {
	if len(citedOrdinals) == 0 || len(blocks) == 0 {
		return nil
	}

	byOrdinal := make(map[int]domain.ContextBlock, len(blocks))
	for _, block := range blocks {
		byOrdinal[block.Ordinal] = block
	}

	seen := make(map[int]bool, len(citedOrdinals))
	citations := make([]domain.SourceCitation, 0, len(citedOrdinals))
	for _, ordinal := range citedOrdinals {
		block, ok := byOrdinal[ordinal]
		if !ok || seen[ordinal] {
			continue
		}
		seen[ordinal] = true

		tokenID, err := p.vault.Mint(ctx, block.SourceRef)
		if err != nil {
			slog.Warn("citation_token_mint_failed", "ordinal", ordinal, "error", err)
			tokenID = ""
		}

		citations = append(citations, domain.SourceCitation{
			Ordinal:       ordinal,
			Title:         block.Title,
			ObfuscatedRef: tokenID,
			Confidence:    block.TopScore,
			Excerpt:       truncateRunes(block.Chunks[0].Text, excerptMaxRunes),
		})
	}
	return citations
}

// record persists the turn and the analytics event on a detached context:
// a client disconnect during streaming must not lose the audit trail.
func (p *QueryPipeline) record(ctx context.Context, queryID string, req domain.QueryRequest, answer *domain.Answer, canonicalText, detectedLang string, start time.Time) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	elapsed := p.now().Sub(start)

	turn := domain.ConversationTurn{
		ConversationID:   answer.ConversationID,
		Timestamp:        start,
		UserText:         req.Message,
		DetectedLanguage: detectedLang,
		CanonicalText:    canonicalText,
		Answer:           *answer,
		Citations:        answer.Citations,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
	if err := p.turns.AppendTurn(recordCtx, turn); err != nil {
		slog.Error("append_turn_failed", "query_id", queryID, "error", err)
	}

	category := "general"
	if p.categorizer != nil {
		category = p.categorizer.CategorizeQuery(canonicalText)
	}
	event := domain.AnalyticsEvent{
		QueryID:       queryID,
		Timestamp:     start,
		Language:      detectedLang,
		Category:      category,
		Latency:       elapsed,
		CitationCount: len(answer.Citations),
		Success:       !answer.Fallback,
	}
	if err := p.analytics.RecordEvent(recordCtx, event); err != nil {
		slog.Error("record_analytics_failed", "query_id", queryID, "error", err)
	}

	if p.observer != nil {
		p.observer.QueryFinished(detectedLang, category, event.Success, event.CitationCount, elapsed)
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
