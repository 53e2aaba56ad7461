package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pulselabs/pulse/internal/engine"
	"github.com/pulselabs/pulse/internal/jobs"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must cover a full query round trip through the LLM.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs GET /metrics.
	// If nil, a private registry is created.
	Registry *prometheus.Registry
}

// answerer is the interface handleChat calls to answer a question.
// *engine.Engine satisfies it; tests inject a fake.
type answerer interface {
	// Answer runs the retrieval and generation loop for query.
	Answer(ctx context.Context, query string) (*engine.Result, error)
}

// enqueuer is the interface handleScrape calls to hand a job to the
// background workers. *queue.Client satisfies it; tests inject a fake.
type enqueuer interface {
	EnqueueIngest(ctx context.Context, jobID, url string) error
}

// sourceStore is the subset of the vector store the source endpoints need.
type sourceStore interface {
	DistinctSources(ctx context.Context) ([]string, error)
	DeleteBySource(ctx context.Context, source string) error
}

// Deps bundles the collaborators the server handlers talk to.
type Deps struct {
	// Engine answers /api/chat questions. Required.
	Engine answerer
	// Tracker records and reports ingestion jobs. Required.
	Tracker jobs.Tracker
	// Queue dispatches ingestion work to the workers. Required.
	Queue enqueuer
	// Sources backs the /api/sources endpoints. Required.
	Sources sourceStore
}

// Server is the HTTP server exposing the knowledge base API.
type Server struct {
	// deps holds the handler collaborators.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments registered for this instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// scrapeRequest is the JSON body for POST /api/scrape.
type scrapeRequest struct {
	// URL is the page to ingest.
	URL string `json:"url"`
}

// scrapeResponse is the JSON response for POST /api/scrape.
type scrapeResponse struct {
	// TaskID identifies the created ingestion job. Doubles as the queue
	// task ID so clients can poll GET /api/jobs/{id} with it.
	TaskID string `json:"task_id"`
	// Status is the job's initial state.
	Status string `json:"status"`
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
}

// sourcesResponse is the JSON response for GET /api/sources.
type sourcesResponse struct {
	// Sources is the list of distinct ingested source URLs.
	Sources []string `json:"sources"`
}

// errorResponse is the JSON body for error replies.
type errorResponse struct {
	// Error is a human-readable description of what went wrong.
	Error string `json:"error"`
}
