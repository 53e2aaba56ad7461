// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, chunk retrieval, and embedding.
// Concrete implementations (Qdrant, Ollama, etc.) satisfy these interfaces so
// the query engine and ingestion pipeline never depend on a specific backend.
package rag

import (
	"context"
)

// Chunk is a bounded-length text segment with its embedding vector and
// originating URL. Chunks are immutable once written and deleted only in
// bulk by source.
type Chunk struct {
	// ID is the unique identifier for this chunk (UUID).
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the URL the chunk was ingested from.
	Source string

	// Embedding is the dense vector for Content. Populated by the ingestion
	// pipeline before insert; empty on chunks returned from a search.
	Embedding []float32

	// Distance is the L2 distance to the query vector, assigned during
	// retrieval. Zero value means the distance was not computed.
	Distance float32
}

// VectorStore is the interface for persisting and searching embedded chunks.
// Implementations must be safe to call from multiple goroutines — ingestion
// jobs for different URLs insert concurrently.
type VectorStore interface {
	// Insert persists a single chunk with its pre-computed embedding.
	Insert(ctx context.Context, chunk Chunk) error

	// Nearest returns up to k chunks ordered by ascending L2 distance to
	// queryEmbedding. Ties are broken by whatever stable order the backend
	// gives; callers must not rely on a specific tie-break.
	Nearest(ctx context.Context, queryEmbedding []float32, k int) ([]Chunk, error)

	// DeleteBySource removes every chunk ingested from the given source URL.
	DeleteBySource(ctx context.Context, source string) error

	// DistinctSources returns the set of source URLs currently stored.
	DistinctSources(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be deterministic for identical input and safe to call
// from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the query engine to fetch
// relevant chunks for a query. It combines embedding and vector search.
type Retriever interface {
	// Retrieve returns up to k chunks most relevant to the query.
	Retrieve(ctx context.Context, query string, k int) ([]Chunk, error)
}
