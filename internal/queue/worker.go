package queue

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pulselabs/pulse/internal/logging"
)

// DefaultConcurrency is the number of ingestion tasks a worker processes
// in parallel.
const DefaultConcurrency = 4

// Ingester runs the ingestion pipeline for one job.
type Ingester interface {
	Ingest(ctx context.Context, jobID, url string) error
}

// Worker consumes ingestion tasks from Redis and runs them through the
// pipeline.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	ingester Ingester
	logger   *slog.Logger
}

// WorkerConfig holds the knobs for constructing a [Worker].
type WorkerConfig struct {
	// Redis is the broker connection.
	Redis asynq.RedisClientOpt
	// Concurrency is the number of tasks handled in parallel.
	// Defaults to DefaultConcurrency.
	Concurrency int
	// Ingester runs each task. Required.
	Ingester Ingester
	// Logger receives worker lifecycle and task logs. Required.
	Logger *slog.Logger
}

// NewWorker constructs a worker bound to the ingestion task type.
func NewWorker(cfg WorkerConfig) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	w := &Worker{
		server: asynq.NewServer(cfg.Redis, asynq.Config{
			Concurrency: concurrency,
		}),
		mux:      asynq.NewServeMux(),
		ingester: cfg.Ingester,
		logger:   cfg.Logger,
	}
	w.mux.HandleFunc(TypeIngestURL, w.handleIngest)
	return w
}

// Run blocks processing tasks until ctx is canceled, then drains in-flight
// tasks and returns.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

// handleIngest unpacks a task and hands it to the pipeline. It always
// returns nil for pipeline-level failures: those are recorded on the job,
// and retrying at the queue layer would double-report them.
func (w *Worker) handleIngest(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseIngestPayload(task)
	if err != nil {
		w.logger.Error("dropping malformed ingestion task", "error", err)
		return nil
	}

	log := w.logger.With("job_id", payload.JobID, "url", payload.URL)
	log.Info("ingestion task started")

	ctx = logging.WithLogger(ctx, log)
	if err := w.ingester.Ingest(ctx, payload.JobID, payload.URL); err != nil {
		log.Error("ingestion task failed", "error", err)
	}
	return nil
}
