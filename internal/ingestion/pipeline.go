// Package ingestion fetches web pages, normalizes them to plain text,
// splits the text into overlapping chunks, and writes embedded chunks to
// the vector store while recording progress in the job tracker.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pulselabs/pulse/internal/jobs"
	"github.com/pulselabs/pulse/internal/logging"
	"github.com/pulselabs/pulse/internal/rag"
)

// DefaultFetchTimeout bounds how long a page download may take.
const DefaultFetchTimeout = 10 * time.Second

// maxBodyBytes caps the downloaded page size to keep a single URL from
// exhausting memory.
const maxBodyBytes = 16 << 20

// Pipeline executes the ingestion flow for a single URL: fetch, normalize,
// chunk, embed, store. Job state transitions are recorded via the tracker;
// tracker write failures are logged and do not abort the pipeline.
type Pipeline struct {
	tracker  jobs.Tracker
	embedder rag.Embedder
	store    rag.VectorStore
	chunker  Chunker
	client   *http.Client
}

// Config holds the knobs for constructing a [Pipeline].
type Config struct {
	// Tracker records job lifecycle transitions. Required.
	Tracker jobs.Tracker
	// Embedder converts chunk text to vectors. Required.
	Embedder rag.Embedder
	// Store persists embedded chunks. Required.
	Store rag.VectorStore
	// FetchTimeout bounds the page download. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration
	// ChunkSize overrides the chunk length. Defaults to DefaultChunkSize.
	ChunkSize int
	// ChunkOverlap overrides the overlap length. Defaults to DefaultChunkOverlap.
	ChunkOverlap int
	// Client overrides the HTTP client used for fetching. Mainly for tests.
	Client *http.Client
}

// New constructs a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("ingestion: tracker is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("ingestion: embedder is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("ingestion: store is required")
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Pipeline{
		tracker:  cfg.Tracker,
		embedder: cfg.Embedder,
		store:    cfg.Store,
		chunker:  Chunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		client:   client,
	}, nil
}

// Ingest runs the full pipeline for one job. Any failure marks the job
// FAILED with the error text and returns nil: the job record is the
// authoritative report, and chunks stored before the failure are kept.
func (p *Pipeline) Ingest(ctx context.Context, jobID, url string) error {
	log := logging.FromContext(ctx).With("job_id", jobID, "url", url)

	// Job bookkeeping is best-effort. A missing or failing tracker write is
	// logged but never stops the ingestion itself.
	if err := p.tracker.MarkProcessing(ctx, jobID); err != nil {
		log.Warn("failed to mark job processing", "error", err)
	}

	text, err := p.fetch(ctx, url)
	if err != nil {
		log.Error("fetch failed", "error", err)
		p.fail(ctx, log, jobID, err)
		return nil
	}

	chunks := p.chunker.Split(Normalize(text))

	for i, content := range chunks {
		vectors, err := p.embedder.Embed(ctx, []string{content})
		if err != nil {
			log.Error("embedding failed", "chunk", i, "error", err)
			p.fail(ctx, log, jobID, err)
			return nil
		}
		if len(vectors) == 0 {
			err := fmt.Errorf("ingestion: embedder returned no vector for chunk %d", i)
			log.Error("embedding failed", "chunk", i, "error", err)
			p.fail(ctx, log, jobID, err)
			return nil
		}

		chunk := rag.Chunk{
			ID:        uuid.NewString(),
			Content:   content,
			Source:    url,
			Embedding: vectors[0],
		}
		if err := p.store.Insert(ctx, chunk); err != nil {
			log.Error("vector store insert failed", "chunk", i, "error", err)
			p.fail(ctx, log, jobID, err)
			return nil
		}
	}

	result := fmt.Sprintf("Ingested %d chunks", len(chunks))
	if err := p.tracker.MarkCompleted(ctx, jobID, result); err != nil {
		log.Warn("failed to mark job completed", "error", err)
	}

	log.Info("ingestion finished", "chunks", len(chunks))
	return nil
}

// fetch downloads url and returns the response body as a string.
// Non-2xx statuses are errors.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("ingestion: build request: %w", err)
	}
	req.Header.Set("User-Agent", "pulse-ingester/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ingestion: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ingestion: fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("ingestion: read body: %w", err)
	}

	return string(body), nil
}

// fail records the error on the job. A tracker failure here is only logged;
// there is nowhere else to report it.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, jobID string, cause error) {
	if err := p.tracker.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		log.Warn("failed to mark job failed", "error", err)
	}
}
