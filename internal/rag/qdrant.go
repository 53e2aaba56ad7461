package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Must match the embedder's output dimension.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
// Distance metric is Euclidean (L2); Nearest results come back in the
// ascending-distance order Qdrant produces.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// Client exposes the underlying gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// ensureCollection creates the Qdrant collection if it does not already exist
// and indexes the source payload field so DeleteBySource and DistinctSources
// stay efficient as the corpus grows.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.cfg.Collection,
		FieldName:      "source",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to index source field: %w", err)
	}

	return nil
}

// Insert persists a single chunk with its pre-computed embedding.
func (s *QdrantStore) Insert(ctx context.Context, chunk Chunk) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(chunk.ID),
		Vectors: qdrant.NewVectors(chunk.Embedding...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"content": chunk.Content,
			"source":  chunk.Source,
		}),
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("qdrant: insert failed: %w", err)
	}

	return nil
}

// Nearest performs an L2 similarity search and returns up to k chunks in
// ascending distance order.
func (s *QdrantStore) Nearest(ctx context.Context, queryEmbedding []float32, k int) ([]Chunk, error) {
	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunk := Chunk{
			ID:       r.Id.GetUuid(),
			Distance: r.Score,
		}
		if p := r.Payload; p != nil {
			if v, ok := p["content"]; ok {
				chunk.Content = v.GetStringValue()
			}
			if v, ok := p["source"]; ok {
				chunk.Source = v.GetStringValue()
			}
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// DeleteBySource removes every chunk whose source payload matches the URL.
func (s *QdrantStore) DeleteBySource(ctx context.Context, source string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("source", source),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete by source failed: %w", err)
	}

	return nil
}

// distinctSourcesLimit bounds the number of distinct sources returned.
const distinctSourcesLimit = 10000

// DistinctSources returns the set of source URLs currently stored, using a
// facet count over the indexed source payload field.
func (s *QdrantStore) DistinctSources(ctx context.Context) ([]string, error) {
	limit := uint64(distinctSourcesLimit)
	hits, err := s.client.Facet(ctx, &qdrant.FacetCounts{
		CollectionName: s.cfg.Collection,
		Key:            "source",
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: facet over sources failed: %w", err)
	}

	sources := make([]string, 0, len(hits))
	for _, h := range hits {
		if v := h.GetValue(); v != nil {
			sources = append(sources, v.GetStringValue())
		}
	}

	return sources, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
