package server

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pulselabs/pulse/internal/engine"
	"github.com/pulselabs/pulse/internal/jobs"
	"github.com/pulselabs/pulse/internal/logging"
)

// ---------------------------------------------------------------------------
// Shared fakes for handler tests
// ---------------------------------------------------------------------------

// fakeAnswerer implements the answerer interface for tests.
type fakeAnswerer struct {
	// result is returned on success.
	result *engine.Result
	// err is returned as the error value.
	err error
	// query records the last question received.
	query string
}

func (f *fakeAnswerer) Answer(_ context.Context, query string) (*engine.Result, error) {
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeEnqueuer implements the enqueuer interface for tests.
type fakeEnqueuer struct {
	err   error
	jobID string
	url   string
	calls int
}

func (f *fakeEnqueuer) EnqueueIngest(_ context.Context, jobID, url string) error {
	f.calls++
	f.jobID = jobID
	f.url = url
	return f.err
}

// fakeSourceStore implements the sourceStore interface for tests.
type fakeSourceStore struct {
	sources []string
	listErr error
	delErr  error
	deleted string
}

func (f *fakeSourceStore) DistinctSources(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sources, nil
}

func (f *fakeSourceStore) DeleteBySource(_ context.Context, source string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = source
	return nil
}

// testDeps bundles the fakes a test server is built from.
type testDeps struct {
	answerer *fakeAnswerer
	enqueuer *fakeEnqueuer
	sources  *fakeSourceStore
	tracker  *jobs.SQLiteTracker
}

// newTestServer builds a *Server over in-memory fakes suitable for calling
// handlers directly.
func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()

	tracker, err := jobs.Open(":memory:")
	if err != nil {
		t.Fatalf("open tracker: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })

	deps := &testDeps{
		answerer: &fakeAnswerer{result: &engine.Result{Answer: "ok"}},
		enqueuer: &fakeEnqueuer{},
		sources:  &fakeSourceStore{},
		tracker:  tracker,
	}

	s := &Server{
		deps: Deps{
			Engine:  deps.answerer,
			Tracker: tracker,
			Queue:   deps.enqueuer,
			Sources: deps.sources,
		},
		cfg:     &Config{Port: 8080},
		log:     logging.Discard(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
	return s, deps
}
