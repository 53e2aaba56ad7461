package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulselabs/pulse/internal/embedder"
	"github.com/pulselabs/pulse/internal/ingestion"
	"github.com/pulselabs/pulse/internal/logging"
	"github.com/pulselabs/pulse/internal/queue"
)

// NewWorkerCmd constructs the `pulse worker` command, which consumes
// ingestion tasks from Redis and runs them through the pipeline.
func NewWorkerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start a background ingestion worker",
		Long: `Start a background worker that processes queued ingestion jobs.

Each job fetches a web page, strips it to plain text, splits it into
overlapping chunks, embeds every chunk, and writes the vectors to Qdrant.
Job progress is recorded in the shared job tracker so the API server can
report it.

Run as many workers as you need; tasks are distributed over Redis.

Examples:
  pulse worker
  pulse worker --concurrency 8`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			store, err := openQdrantStore(ctx, log)
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}
			defer store.Close()

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("worker: failed to initialise embedder: %w", err)
			}

			tracker, err := openTracker(log)
			if err != nil {
				return fmt.Errorf("worker: %w", err)
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
				return fmt.Errorf("worker: failed to create pipeline: %w", err)
			}

			addr, password, db := redisOptFromEnv()
			if concurrency == 0 {
				concurrency = getEnvInt("WORKER_CONCURRENCY", queue.DefaultConcurrency)
			}

			w := queue.NewWorker(queue.WorkerConfig{
				Redis:       queue.RedisOpt(addr, password, db),
				Concurrency: concurrency,
				Ingester:    pipeline,
				Logger:      log,
			})

			log.Info("worker starting",
				slog.String("redis", addr),
				slog.Int("concurrency", concurrency),
			)
			return w.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Number of ingestion tasks processed in parallel")

	return cmd
}
