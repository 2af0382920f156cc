package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
	"github.com/kirillkom/archive-assistant/internal/core/ports"
)

// HandoffPrefix is the object-storage prefix consumed by external indexing.
// Writing there is the ingestion pipeline's scope boundary.
const HandoffPrefix = "extracted/"

type ExtractResultUseCase struct {
	ocr     ports.OCRService
	storage ports.ObjectStorage
	now     func() time.Time
}

func NewExtractResultUseCase(ocr ports.OCRService, storage ports.ObjectStorage) *ExtractResultUseCase {
	return &ExtractResultUseCase{
		ocr:     ocr,
		storage: storage,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Extract fetches the completed job's payload, normalizes either output
// shape into one ExtractedDocument and persists it to the hand-off location.
func (uc *ExtractResultUseCase) Extract(ctx context.Context, job *domain.IngestJob) (*domain.ExtractedDocument, error) {
	payload, err := uc.ocr.GetResult(ctx, job.RemoteJobID)
	if err != nil {
		return nil, fmt.Errorf("fetch ocr result: %w", err)
	}
	if payload == nil || len(payload.Pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract result", fmt.Errorf("ocr payload has no pages"))
	}

	doc := normalizePayload(job.SourceRef, payload, uc.now())

	if err := uc.persistHandoff(ctx, job.ID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func normalizePayload(sourceRef string, payload *domain.OCRPayload, extractedAt time.Time) *domain.ExtractedDocument {
	var text strings.Builder
	var confidenceSum float64
	pages := 0

	for _, page := range payload.Pages {
		pages++
		confidenceSum += page.Confidence
		if trimmed := strings.TrimSpace(page.Text); trimmed != "" {
			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(trimmed)
		}
	}

	// Key-value pairs from form analysis are folded into the plain text so
	// downstream indexing sees them regardless of shape.
	for _, kv := range payload.Forms {
		line := strings.TrimSpace(kv.Key)
		if line == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(line)
		text.WriteString(": ")
		text.WriteString(strings.TrimSpace(kv.Value))
	}

	confidence := 0.0
	if pages > 0 {
		confidence = confidenceSum / float64(pages)
	}

	full := text.String()
	return &domain.ExtractedDocument{
		SourceRef:      sourceRef,
		Pages:          pages,
		Text:           full,
		StructuredData: payload.Tables,
		Confidence:     confidence,
		WordCount:      len(strings.Fields(full)),
		ExtractedAt:    extractedAt,
	}
}

func (uc *ExtractResultUseCase) persistHandoff(ctx context.Context, jobID string, doc *domain.ExtractedDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal extracted document: %w", err)
	}
	key := HandoffPrefix + jobID + ".json"
	if err := uc.storage.Save(ctx, key, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("persist extracted document: %w", err)
	}
	return nil
}
