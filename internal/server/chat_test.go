package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pulselabs/pulse/internal/engine"
)

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`not-json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_MissingQuery(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"query":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_Success(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t)
	deps.answerer.result = &engine.Result{
		Answer:  "Paris is the capital of France.",
		Trace:   []string{"Searching for: capital of France"},
		Sources: []string{"France is a country..."},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"query":"What is the capital of France?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if deps.answerer.query != "What is the capital of France?" {
		t.Errorf("engine got query %q", deps.answerer.query)
	}

	var got engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Answer != "Paris is the capital of France." {
		t.Errorf("answer = %q", got.Answer)
	}
	if len(got.Trace) != 1 || len(got.Sources) != 1 {
		t.Errorf("trace/sources = %v / %v", got.Trace, got.Sources)
	}
}

func TestHandleChat_EngineError(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t)
	deps.answerer.err = errors.New("llm unavailable")

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"query":"anything"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "llm unavailable") {
		t.Errorf("expected error detail in body, got: %s", w.Body.String())
	}
}
