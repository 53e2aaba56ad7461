package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/pulselabs/pulse/internal/embedder"
	"github.com/pulselabs/pulse/internal/logging"
	"github.com/pulselabs/pulse/internal/rag"
	"github.com/pulselabs/pulse/internal/server"
	"github.com/pulselabs/pulse/internal/tracing"
)

// NewServeCmd constructs the `pulse serve` command, which starts the HTTP
// API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Pulse HTTP API server",
		Long: `Start the Pulse HTTP API server.

The server accepts ingestion jobs (POST /api/scrape), reports their progress
(GET /api/jobs), answers questions against the ingested corpus
(POST /api/chat), and manages sources (GET/DELETE /api/sources).
Ingestion itself runs in separate worker processes; start at least one with
'pulse worker'.

Examples:
  pulse serve
  pulse serve --port 9090
  MODEL_PROVIDER=openai pulse serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			store, err := openQdrantStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer store.Close()

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			retriever, err := rag.NewRetriever(emb, store, getEnvInt("ENGINE_TOP_K", 3))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			eng, err := buildEngine(ctx, retriever, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			tracker, err := openTracker(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer tracker.Close()

			q := ingestQueueFromEnv()
			defer q.Close()

			redisAddr, redisPassword, redisDB := redisOptFromEnv()
			pingers := []server.Pinger{
				server.NewQdrantPinger(store.Client()),
				server.NewRedisPinger(redisAddr, redisPassword, redisDB),
				server.NewDBPinger(tracker.DB()),
			}

			srv, err := server.New(server.Deps{
				Engine:  eng,
				Tracker: tracker,
				Queue:   q,
				Sources: store,
			}, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				APIKey:    os.Getenv("PULSE_API_KEY"),
				RateLimit: getEnvFloat64("SERVER_RATE_LIMIT", 0),
				RateBurst: getEnvInt("SERVER_RATE_BURST", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
