package domain

import "time"

// RetrievedChunk lives only for the duration of one query.
type RetrievedChunk struct {
	SourceDocumentID string  `json:"source_document_id"`
	SourceRef        string  `json:"source_ref"`
	Title            string  `json:"title"`
	Text             string  `json:"text"`
	Score            float64 `json:"score"`
}

// ContextBlock is one surviving source document after diversity reduction.
// The ordinal becomes the citation id visible to the model and the client.
type ContextBlock struct {
	Ordinal          int              `json:"ordinal"`
	SourceDocumentID string           `json:"source_document_id"`
	SourceRef        string           `json:"source_ref"`
	Title            string           `json:"title"`
	Chunks           []RetrievedChunk `json:"chunks"`
	TopScore         float64          `json:"top_score"`
}

type SourceCitation struct {
	Ordinal       int     `json:"ordinal"`
	Title         string  `json:"title"`
	ObfuscatedRef string  `json:"obfuscated_ref,omitempty"`
	Confidence    float64 `json:"confidence"`
	Excerpt       string  `json:"excerpt,omitempty"`
}

// ReferenceToken maps an opaque id to a storage location. Minted fresh per
// citation per query; self-expires.
type ReferenceToken struct {
	TokenID         string    `json:"token_id"`
	StorageLocation string    `json:"storage_location"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}
