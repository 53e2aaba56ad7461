package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulselabs/pulse/internal/embedder"
	"github.com/pulselabs/pulse/internal/ingestion"
	"github.com/pulselabs/pulse/internal/jobs"
	"github.com/pulselabs/pulse/internal/logging"
)

// NewIngestCmd constructs the `pulse ingest` command, which ingests URLs
// synchronously without going through the Redis queue. Each URL still gets
// a tracked job record, so 'pulse jobs' reports it like any other.
func NewIngestCmd() *cobra.Command {
	var urls []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest web pages into the knowledge base",
		Long: `Fetch, clean, chunk, and embed web pages into the Qdrant vector store.

This runs the full ingestion pipeline in-process, without Redis or a
worker. Use it to seed a knowledge base from a shell, or in environments
where the queue is not running.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: pulse-docs)
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  pulse ingest --url https://en.wikipedia.org/wiki/Retrieval-augmented_generation
  pulse ingest -u https://example.com/a -u https://example.com/b`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(urls) == 0 {
				return fmt.Errorf("ingest: at least one --url is required")
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}

			store, err := openQdrantStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			tracker, err := openTracker(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer tracker.Close()

			pipeline, err := ingestion.New(ingestion.Config{
				Tracker:      tracker,
				Embedder:     emb,
				Store:        store,
				FetchTimeout: getEnvDuration("INGEST_FETCH_TIMEOUT", 10*time.Second),
				ChunkSize:    getEnvInt("INGEST_CHUNK_SIZE", 0),
				ChunkOverlap: getEnvInt("INGEST_CHUNK_OVERLAP", 0),
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			failed := 0
			for _, u := range urls {
				job, err := tracker.Create(ctx, u)
				if err != nil {
					return fmt.Errorf("ingest: failed to create job for %s: %w", u, err)
				}

				if err := pipeline.Ingest(ctx, job.ID, u); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}

				done, err := tracker.Get(ctx, job.ID)
				if err != nil {
					return fmt.Errorf("ingest: failed to read job %s: %w", job.ID, err)
				}
				if done.Status == jobs.StatusFailed {
					failed++
					log.Error("ingestion failed",
						slog.String("url", u),
						slog.String("detail", done.Result),
					)
					continue
				}
				fmt.Printf("%s: %s\n", u, done.Result)
			}

			if failed > 0 {
				return fmt.Errorf("ingest: %d of %d URLs failed", failed, len(urls))
			}
			log.Info("ingestion complete", slog.Int("urls", len(urls)))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Web page URL to ingest (repeatable)")

	return cmd
}
