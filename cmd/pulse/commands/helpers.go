package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pulselabs/pulse/internal/embedder"
	"github.com/pulselabs/pulse/internal/engine"
	"github.com/pulselabs/pulse/internal/jobs"
	"github.com/pulselabs/pulse/internal/llm"
	"github.com/pulselabs/pulse/internal/provider"
	"github.com/pulselabs/pulse/internal/queue"
	"github.com/pulselabs/pulse/internal/rag"
)

// openQdrantStore connects to Qdrant using QDRANT_* env vars, sizing the
// collection to the configured embedding backend.
func openQdrantStore(ctx context.Context, log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "pulse-docs")
	vectorSize := uint64(embedder.DefaultDimensions(embedder.Backend()))

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return store, nil
}

// openTracker opens the SQLite job tracker. PULSE_JOBS_DB overrides the
// default path (~/.pulse/jobs.db).
func openTracker(log *slog.Logger) (*jobs.SQLiteTracker, error) {
	path := os.Getenv("PULSE_JOBS_DB")
	if path == "" {
		var err error
		path, err = jobs.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve jobs db path: %w", err)
		}
	}

	tracker, err := jobs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open jobs db at %s: %w", path, err)
	}

	log.Info("job tracker opened", slog.String("path", path))
	return tracker, nil
}

// redisOptFromEnv builds the asynq Redis connection options from REDIS_* env vars.
func redisOptFromEnv() (string, string, int) {
	return getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		os.Getenv("REDIS_PASSWORD"),
		getEnvInt("REDIS_DB", 0)
}

// buildEngine wires the chat model into the full query engine over the
// given retriever.
func buildEngine(ctx context.Context, retriever rag.Retriever, log *slog.Logger) (*engine.Engine, error) {
	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

	return engine.New(&engine.Config{
		Retriever:      retriever,
		Generator:      llm.NewGenerator(chatModel),
		Grader:         llm.NewGrader(chatModel),
		Rewriter:       llm.NewRewriter(chatModel),
		TopK:           getEnvInt("ENGINE_TOP_K", 3),
		GradeThreshold: getEnvFloat64("ENGINE_GRADE_THRESHOLD", 0.7),
		LLMTimeout:     getEnvDuration("ENGINE_LLM_TIMEOUT", 120*time.Second),
	})
}

// ingestQueueFromEnv connects a task producer to the Redis broker.
func ingestQueueFromEnv() *queue.Client {
	addr, password, db := redisOptFromEnv()
	return queue.NewClient(queue.RedisOpt(addr, password, db))
}

// getEnvOrDefault returns the env value for key, or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer env value for key, or fallback when unset
// or unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat64 returns the float env value for key, or fallback when unset
// or unparseable.
func getEnvFloat64(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration returns the duration env value for key (e.g. "90s", "2m"),
// or fallback when unset or unparseable. Bare numbers are read as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
