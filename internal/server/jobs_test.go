package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pulselabs/pulse/internal/jobs"
)

func TestHandleScrape_Success(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/scrape",
		strings.NewReader(`{"url":"https://example.com/doc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleScrape(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp scrapeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TaskID == "" {
		t.Error("expected a task id")
	}
	if resp.Status != string(jobs.StatusPending) {
		t.Errorf("status = %q, want %q", resp.Status, jobs.StatusPending)
	}

	if deps.enqueuer.calls != 1 {
		t.Fatalf("enqueuer called %d times, want 1", deps.enqueuer.calls)
	}
	if deps.enqueuer.jobID != resp.TaskID {
		t.Errorf("enqueued job id %q, response %q", deps.enqueuer.jobID, resp.TaskID)
	}
	if deps.enqueuer.url != "https://example.com/doc" {
		t.Errorf("enqueued url = %q", deps.enqueuer.url)
	}

	job, err := deps.tracker.Get(context.Background(), resp.TaskID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusPending {
		t.Errorf("tracked status = %s, want PENDING", job.Status)
	}
}

func TestHandleScrape_InvalidURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `oops`},
		{name: "empty url", body: `{"url":""}`},
		{name: "no scheme", body: `{"url":"example.com"}`},
		{name: "bad scheme", body: `{"url":"ftp://example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, deps := newTestServer(t)
			req := httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			s.handleScrape(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if deps.enqueuer.calls != 0 {
				t.Errorf("enqueuer called %d times, want 0", deps.enqueuer.calls)
			}
		})
	}
}

func TestHandleScrape_EnqueueFailureFailsJob(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t)
	deps.enqueuer.err = errors.New("redis down")

	req := httptest.NewRequest(http.MethodPost, "/api/scrape",
		strings.NewReader(`{"url":"https://example.com"}`))
	w := httptest.NewRecorder()

	s.handleScrape(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	list, err := deps.tracker.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("have %d jobs, want 1", len(list))
	}
	if list[0].Status != jobs.StatusFailed {
		t.Errorf("job status = %s, want FAILED", list[0].Status)
	}
	if !strings.Contains(list[0].Result, "redis down") {
		t.Errorf("job result = %q, want enqueue error detail", list[0].Result)
	}
}

func TestHandleGetJob(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t)
	created, err := deps.tracker.Create(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.ID, nil)
	req.SetPathValue("id", created.ID)
	w := httptest.NewRecorder()

	s.handleGetJob(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var job jobs.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.ID != created.ID {
		t.Errorf("job id = %q, want %q", job.ID, created.ID)
	}
}

func TestHandleGetJob_NotFound(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()

	s.handleGetJob(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleListJobs(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t)
	for _, u := range []string{"https://a.example", "https://b.example"} {
		if _, err := deps.tracker.Create(context.Background(), u); err != nil {
			t.Fatalf("create job: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	w := httptest.NewRecorder()

	s.handleListJobs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var list []jobs.Job
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("listed %d jobs, want 2", len(list))
	}
}

func TestHandleListJobs_Limit(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t)
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		if _, err := deps.tracker.Create(context.Background(), u); err != nil {
			t.Fatalf("create job: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?limit=2", nil)
	w := httptest.NewRecorder()

	s.handleListJobs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var list []jobs.Job
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("listed %d jobs, want 2", len(list))
	}
}

func TestHandleListJobs_InvalidLimit(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	for _, raw := range []string{"zero", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs?limit="+raw, nil)
		w := httptest.NewRecorder()

		s.handleListJobs(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", raw, w.Code)
		}
	}
}

func TestHandleListJobs_Empty(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	w := httptest.NewRecorder()

	s.handleListJobs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	// Empty list must serialize as [], not null.
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}
