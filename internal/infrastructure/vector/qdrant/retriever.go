package qdrant

import (
	"context"
	"fmt"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

// QueryEmbedder produces the vector for a retrieval query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever satisfies the KnowledgeBase port: embed the query, search the
// collection. Zero hits come back as an empty slice.
type Retriever struct {
	embedder QueryEmbedder
	client   *Client
}

func NewRetriever(embedder QueryEmbedder, client *Client) *Retriever {
	return &Retriever{embedder: embedder, client: client}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 50
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := r.client.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []domain.RetrievedChunk{}
	}
	return chunks, nil
}
