package ports

import (
	"context"
	"io"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

// DocumentIngestor is the inbound contract for scan upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.IngestJob, error)
}

// IngestJobReader is the inbound read model for job state.
type IngestJobReader interface {
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
}

// IngestJobRunner drives one ingest job to a terminal state.
type IngestJobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// StreamSink receives the incremental output of one query.
type StreamSink interface {
	Fragment(text string) error
	Complete(answer *domain.Answer) error
}

// QueryService is the inbound contract for the question-answering pipeline.
type QueryService interface {
	Ask(ctx context.Context, req domain.QueryRequest, sink StreamSink) (*domain.Answer, error)
}

// ReferenceResolver exchanges an opaque citation token for a short-lived
// access URL.
type ReferenceResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// ConversationHistory reads a conversation's recorded turns in timestamp
// order.
type ConversationHistory interface {
	ListTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
}
