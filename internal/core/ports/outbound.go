package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

// ObjectStorage stores source scans and extraction hand-off documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	SignedReadURL(key string, ttl time.Duration) (string, error)
}

// OCRService is the asynchronous text-detection service.
type OCRService interface {
	StartJob(ctx context.Context, sourceRef string, mode domain.OCRMode) (string, error)
	GetStatus(ctx context.Context, remoteJobID string) (domain.JobStatus, error)
	GetResult(ctx context.Context, remoteJobID string) (*domain.OCRPayload, error)
}

// Translator converts text between languages. An empty sourceLang means
// auto-detection.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (translated, detectedLang string, err error)
}

// KnowledgeBase performs semantic retrieval over the indexed archive.
// Zero hits yield an empty slice, never an error.
type KnowledgeBase interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error)
}

// NarrativeGenerator streams model output. Every fragment is delivered
// through onFragment before the accumulated text is returned.
type NarrativeGenerator interface {
	GenerateStream(ctx context.Context, prompt string, onFragment func(string) error) (string, error)
}

// UploadEvents publishes/consumes object-write notifications.
type UploadEvents interface {
	PublishDocumentUploaded(ctx context.Context, jobID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// IngestJobStore persists job state between polls of the OCR workflow.
type IngestJobStore interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	SetRemoteJob(ctx context.Context, id, remoteJobID string) error
	// UpdateStatus refuses transitions out of a terminal state.
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string, checkedAt time.Time) error
}

// TokenStore persists reference tokens. Expiry is enforced by the vault.
type TokenStore interface {
	Put(ctx context.Context, token domain.ReferenceToken) error
	Get(ctx context.Context, tokenID string) (*domain.ReferenceToken, error)
}

// TurnRecorder appends conversation turns.
type TurnRecorder interface {
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) error
}

// AnalyticsRecorder appends query telemetry, failures included.
type AnalyticsRecorder interface {
	RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error
	ListEvents(ctx context.Context, since time.Time, limit int) ([]domain.AnalyticsEvent, error)
}

// UploadPreflight inspects an uploaded file before OCR submission.
type UploadPreflight interface {
	Inspect(ctx context.Context, filename string, data io.ReaderAt, size int64) (pages int, hasTextLayer bool, err error)
}
