package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pulselabs/pulse/internal/rag"
)

// fakeRetriever returns canned chunks per call, in order.
type fakeRetriever struct {
	// results holds the chunk sets to return on successive calls.
	results [][]rag.Chunk
	// queries records every query passed in.
	queries []string
	// err aborts every call when non-nil.
	err error
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _ int) ([]rag.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, query)
	idx := len(f.queries) - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx], nil
}

// fakeGenerator echoes a fixed answer and records calls.
type fakeGenerator struct {
	answer string
	calls  int
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, _ []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls++
	return f.answer, nil
}

// fakeGrader returns a fixed grade and records calls.
type fakeGrader struct {
	grade float64
	calls int
	err   error
}

func (f *fakeGrader) Score(_ context.Context, _, _, _ string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.calls++
	return f.grade, nil
}

// fakeRewriter returns a fixed rewrite and records calls.
type fakeRewriter struct {
	rewritten string
	calls     int
}

func (f *fakeRewriter) Rewrite(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.rewritten, nil
}

// someChunks builds a small retrieval result.
func someChunks(contents ...string) []rag.Chunk {
	chunks := make([]rag.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = rag.Chunk{ID: "id", Content: c, Source: "https://example.com"}
	}
	return chunks
}

// newTestEngine wires an Engine over the given fakes.
func newTestEngine(t *testing.T, r *fakeRetriever, g *fakeGenerator, gr *fakeGrader, rw *fakeRewriter) *Engine {
	t.Helper()
	e, err := New(&Config{Retriever: r, Generator: g, Grader: gr, Rewriter: rw})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func Test_Answer_EmptyStoreReturnsNoInformation(t *testing.T) {
	t.Parallel()
	retriever := &fakeRetriever{results: [][]rag.Chunk{nil}}
	gen := &fakeGenerator{answer: "never"}
	e := newTestEngine(t, retriever, gen, &fakeGrader{grade: 0.9}, &fakeRewriter{})

	res, err := e.Answer(context.Background(), "what is x")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Answer != NoInformationAnswer {
		t.Errorf("want %q, got %q", NoInformationAnswer, res.Answer)
	}
	if len(res.Trace) != 1 || res.Trace[0] != "Searching for: what is x" {
		t.Errorf("unexpected trace: %v", res.Trace)
	}
	if len(res.Sources) != 0 {
		t.Errorf("want no sources, got %v", res.Sources)
	}
	if gen.calls != 0 {
		t.Errorf("generator must not run on empty retrieval, ran %d times", gen.calls)
	}
}

func Test_Answer_HighGradeSkipsRewrite(t *testing.T) {
	t.Parallel()
	retriever := &fakeRetriever{results: [][]rag.Chunk{someChunks("pulse is a knowledge engine")}}
	rewriter := &fakeRewriter{rewritten: "unused"}
	e := newTestEngine(t, retriever, &fakeGenerator{answer: "a knowledge engine"}, &fakeGrader{grade: 0.9}, rewriter)

	res, err := e.Answer(context.Background(), "what is pulse")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Answer != "a knowledge engine" {
		t.Errorf("unexpected answer: %q", res.Answer)
	}
	if rewriter.calls != 0 {
		t.Errorf("rewriter must not run on high grade, ran %d times", rewriter.calls)
	}
	for _, step := range res.Trace {
		if strings.Contains(step, "Rewriting") {
			t.Errorf("trace must not contain a rewrite step: %v", res.Trace)
		}
	}
}

func Test_Answer_LowGradeTriggersExactlyOneRewrite(t *testing.T) {
	t.Parallel()
	retriever := &fakeRetriever{results: [][]rag.Chunk{
		someChunks("first pass context"),
		someChunks("retry pass context"),
	}}
	gen := &fakeGenerator{answer: "an answer"}
	grader := &fakeGrader{grade: 0.3}
	rewriter := &fakeRewriter{rewritten: "what is the pulse knowledge engine"}
	e := newTestEngine(t, retriever, gen, grader, rewriter)

	res, err := e.Answer(context.Background(), "tell me about it")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if rewriter.calls != 1 {
		t.Fatalf("want exactly one rewrite, got %d", rewriter.calls)
	}
	// The rewritten answer is trusted unconditionally: one grading pass only.
	if grader.calls != 1 {
		t.Errorf("want exactly one grading pass, got %d", grader.calls)
	}
	if gen.calls != 2 {
		t.Errorf("want two generation passes, got %d", gen.calls)
	}

	rewriteSteps := 0
	for _, step := range res.Trace {
		if strings.Contains(step, "Rewriting query...") {
			rewriteSteps++
		}
	}
	if rewriteSteps != 1 {
		t.Errorf("want exactly one rewrite trace entry, got %d in %v", rewriteSteps, res.Trace)
	}

	if got := retriever.queries[1]; got != "what is the pulse knowledge engine" {
		t.Errorf("retry must search the rewritten query, got %q", got)
	}
}

func Test_Answer_TraceOrderOnRetry(t *testing.T) {
	t.Parallel()
	retriever := &fakeRetriever{results: [][]rag.Chunk{someChunks("ctx")}}
	e := newTestEngine(t, retriever, &fakeGenerator{answer: "a"}, &fakeGrader{grade: 0.1}, &fakeRewriter{rewritten: "q2"})

	res, err := e.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	want := []string{
		"Searching for: q",
		"Draft answer generated.",
		"Grade: 0.10",
		"Confidence low. Rewriting query...",
		"New Query: q2",
		"New answer generated.",
	}
	if len(res.Trace) != len(want) {
		t.Fatalf("want %d trace steps, got %v", len(want), res.Trace)
	}
	for i, step := range want {
		if res.Trace[i] != step {
			t.Errorf("trace[%d]: want %q, got %q", i, step, res.Trace[i])
		}
	}
}

func Test_Answer_SourcesTruncated(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 500)
	retriever := &fakeRetriever{results: [][]rag.Chunk{someChunks(long, "short")}}
	e := newTestEngine(t, retriever, &fakeGenerator{answer: "a"}, &fakeGrader{grade: 0.9}, &fakeRewriter{})

	res, err := e.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("want 2 sources, got %d", len(res.Sources))
	}
	if want := strings.Repeat("x", 200) + "..."; res.Sources[0] != want {
		t.Errorf("long source not truncated to 200+ellipsis: len=%d", len(res.Sources[0]))
	}
	if res.Sources[1] != "short" {
		t.Errorf("short source must be untouched, got %q", res.Sources[1])
	}
}

func Test_Answer_ModelFailurePropagates(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("llm unavailable")
	retriever := &fakeRetriever{results: [][]rag.Chunk{someChunks("ctx")}}
	e := newTestEngine(t, retriever, &fakeGenerator{err: wantErr}, &fakeGrader{grade: 0.9}, &fakeRewriter{})

	if _, err := e.Answer(context.Background(), "q"); !errors.Is(err, wantErr) {
		t.Fatalf("want generation error to propagate, got %v", err)
	}
}

func Test_Answer_SearchFailurePropagates(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("store unreachable")
	retriever := &fakeRetriever{err: wantErr}
	e := newTestEngine(t, retriever, &fakeGenerator{answer: "a"}, &fakeGrader{grade: 0.9}, &fakeRewriter{})

	if _, err := e.Answer(context.Background(), "q"); !errors.Is(err, wantErr) {
		t.Fatalf("want search error to propagate, got %v", err)
	}
}
