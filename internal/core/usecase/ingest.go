package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
	"github.com/kirillkom/archive-assistant/internal/core/ports"
)

type IngestDocumentUseCase struct {
	jobs      ports.IngestJobStore
	storage   ports.ObjectStorage
	events    ports.UploadEvents
	preflight ports.UploadPreflight
}

func NewIngestDocumentUseCase(
	jobs ports.IngestJobStore,
	storage ports.ObjectStorage,
	events ports.UploadEvents,
	preflight ports.UploadPreflight,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		jobs:      jobs,
		storage:   storage,
		events:    events,
		preflight: preflight,
	}
}

// Upload stores the scan, inspects it to choose an OCR mode, creates the
// ingest job and publishes the upload event that wakes the worker.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.IngestJob, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("filename is required"))
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("empty upload body"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("scans/%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	mode, pages := uc.inspect(ctx, filename, raw)

	job := &domain.IngestJob{
		ID:            id,
		SourceRef:     storageKey,
		Filename:      filename,
		Mode:          mode,
		Status:        domain.JobStarted,
		PagesExpected: pages,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := uc.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create ingest job: %w", err)
	}

	if err := uc.events.PublishDocumentUploaded(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return job, nil
}

// inspect is best-effort: preflight failures fall back to text mode so an
// unreadable header never blocks ingestion.
func (uc *IngestDocumentUseCase) inspect(ctx context.Context, filename string, raw []byte) (domain.OCRMode, int) {
	if uc.preflight == nil {
		return domain.OCRModeText, 0
	}

	pages, hasTextLayer, err := uc.preflight.Inspect(ctx, filename, bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		slog.Warn("upload_preflight_failed", "filename", filename, "error", err)
		return domain.OCRModeText, 0
	}

	// Scans without an embedded text layer tend to be photographed ledgers
	// and forms; those get table/form analysis.
	if !hasTextLayer {
		return domain.OCRModeAnalyzed, pages
	}
	return domain.OCRModeText, pages
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
