package jobs

import (
	"context"
	"errors"
	"testing"
)

// openTestTracker opens an in-memory SQLiteTracker for use in tests.
func openTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	tr, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory tracker: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func Test_Tracker_CreateStartsPending(t *testing.T) {
	t.Parallel()
	tr := openTestTracker(t)
	ctx := context.Background()

	job, err := tr.Create(ctx, "https://example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.ID == "" {
		t.Fatal("create must assign an id")
	}
	if job.Status != StatusPending {
		t.Errorf("want PENDING, got %s", job.Status)
	}
	if job.FinishedAt != nil || job.Result != "" {
		t.Errorf("finished_at/result must be unset before terminal: %+v", job)
	}

	got, err := tr.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.URL != "https://example.com" || got.Status != StatusPending {
		t.Errorf("unexpected stored job: %+v", got)
	}
}

func Test_Tracker_FullLifecycle(t *testing.T) {
	t.Parallel()
	tr := openTestTracker(t)
	ctx := context.Background()

	job, err := tr.Create(ctx, "https://example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := tr.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	got, _ := tr.Get(ctx, job.ID)
	if got.Status != StatusProcessing {
		t.Fatalf("want PROCESSING, got %s", got.Status)
	}
	if got.FinishedAt != nil {
		t.Error("finished_at must stay unset until terminal")
	}

	if err := tr.MarkCompleted(ctx, job.ID, "Ingested 3 chunks"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	got, _ = tr.Get(ctx, job.ID)
	if got.Status != StatusCompleted {
		t.Errorf("want COMPLETED, got %s", got.Status)
	}
	if got.FinishedAt == nil || got.Result != "Ingested 3 chunks" {
		t.Errorf("terminal transition must set finished_at and result together: %+v", got)
	}
}

func Test_Tracker_TerminalTransitionsAreIdempotent(t *testing.T) {
	t.Parallel()
	tr := openTestTracker(t)
	ctx := context.Background()

	job, _ := tr.Create(ctx, "https://example.com")
	_ = tr.MarkProcessing(ctx, job.ID)
	if err := tr.MarkCompleted(ctx, job.ID, "Ingested 1 chunks"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	// A late failure handler must not overwrite the success.
	if err := tr.MarkFailed(ctx, job.ID, "boom"); err != nil {
		t.Fatalf("mark failed after completed: %v", err)
	}
	got, _ := tr.Get(ctx, job.ID)
	if got.Status != StatusCompleted || got.Result != "Ingested 1 chunks" {
		t.Errorf("terminal state was overwritten: %+v", got)
	}

	// Same the other way around.
	if err := tr.MarkCompleted(ctx, job.ID, "late success"); err != nil {
		t.Fatalf("mark completed again: %v", err)
	}
	got, _ = tr.Get(ctx, job.ID)
	if got.Result != "Ingested 1 chunks" {
		t.Errorf("repeated terminal transition must be a no-op: %+v", got)
	}
}

func Test_Tracker_MarkProcessingDoesNotResurrectTerminalJob(t *testing.T) {
	t.Parallel()
	tr := openTestTracker(t)
	ctx := context.Background()

	job, _ := tr.Create(ctx, "https://example.com")
	_ = tr.MarkProcessing(ctx, job.ID)
	_ = tr.MarkFailed(ctx, job.ID, "fetch timed out")

	if err := tr.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("mark processing on terminal job: %v", err)
	}
	got, _ := tr.Get(ctx, job.ID)
	if got.Status != StatusFailed {
		t.Errorf("terminal job must stay FAILED, got %s", got.Status)
	}
}

func Test_Tracker_UnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()
	tr := openTestTracker(t)
	ctx := context.Background()

	if _, err := tr.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get: want ErrNotFound, got %v", err)
	}
	if err := tr.MarkProcessing(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("mark processing: want ErrNotFound, got %v", err)
	}
	if err := tr.MarkCompleted(ctx, "nope", "r"); !errors.Is(err, ErrNotFound) {
		t.Errorf("mark completed: want ErrNotFound, got %v", err)
	}
	if err := tr.MarkFailed(ctx, "nope", "e"); !errors.Is(err, ErrNotFound) {
		t.Errorf("mark failed: want ErrNotFound, got %v", err)
	}
}

func Test_Tracker_ListRecentOrdersNewestFirst(t *testing.T) {
	t.Parallel()
	tr := openTestTracker(t)
	ctx := context.Background()

	var ids []string
	for range 5 {
		job, err := tr.Create(ctx, "https://example.com")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, job.ID)
	}

	listed, err := tr.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("want 3 jobs, got %d", len(listed))
	}
	// All 5 share one timestamp second in this test, so ordering falls back
	// to id descending; just confirm the limit and that entries are known.
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	for _, job := range listed {
		if !known[job.ID] {
			t.Errorf("unknown job in listing: %s", job.ID)
		}
	}
}
