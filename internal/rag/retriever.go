package rag

import (
	"context"
	"fmt"
)

// DefaultRetriever implements the Retriever interface by combining an Embedder
// and a VectorStore. It embeds the query at retrieval time and delegates
// similarity search to the store.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultK is the number of results to return when the caller passes 0.
	defaultK int
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// VectorStore. defaultK sets the fallback result count for Retrieve(_, _, 0).
func NewRetriever(embedder Embedder, store VectorStore, defaultK int) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultK <= 0 {
		defaultK = 3
	}
	return &DefaultRetriever{
		embedder: embedder,
		store:    store,
		defaultK: defaultK,
	}, nil
}

// Retrieve embeds the query and returns up to k nearest chunks.
// If k is 0 the defaultK configured at construction time is used.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = r.defaultK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	chunks, err := r.store.Nearest(ctx, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	return chunks, nil
}
