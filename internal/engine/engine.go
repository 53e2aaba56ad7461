// Package engine implements the retrieval-augmented query engine: search the
// embedded corpus, generate an answer, grade it, and conditionally rewrite the
// query and retry once. The engine returns the answer together with a trace of
// the steps taken so callers can show the reasoning path.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pulselabs/pulse/internal/logging"
	"github.com/pulselabs/pulse/internal/rag"
)

// NoInformationAnswer is returned when the initial search yields no chunks.
const NoInformationAnswer = "No information found."

// sourcePreviewLen bounds the excerpt of each chunk returned as a source.
const sourcePreviewLen = 200

// Generator produces a natural-language answer from a query and context texts.
type Generator interface {
	Generate(ctx context.Context, query string, contexts []string) (string, error)
}

// Grader scores an answer's relevance against the query and context (0.0–1.0).
type Grader interface {
	Score(ctx context.Context, query, context, answer string) (float64, error)
}

// Rewriter reformulates a vague query into a more retrievable form.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// Config holds the dependencies and tuning knobs for the query engine.
type Config struct {
	// Retriever embeds the query and searches the vector store.
	Retriever rag.Retriever

	// Generator produces the draft and retry answers.
	Generator Generator

	// Grader scores the draft answer.
	Grader Grader

	// Rewriter reformulates the query for the single retry.
	Rewriter Rewriter

	// TopK is the number of chunks retrieved per search. Defaults to 3.
	TopK int

	// GradeThreshold is the minimum grade that skips the rewrite retry.
	// Defaults to 0.7.
	GradeThreshold float64

	// LLMTimeout bounds each individual model call (embed, generate, grade,
	// rewrite). Defaults to 120s if zero.
	LLMTimeout time.Duration
}

// Result is the outcome of one Answer invocation.
type Result struct {
	// Answer is the natural-language answer text.
	Answer string `json:"answer"`

	// Trace is the ordered list of human-readable steps taken.
	Trace []string `json:"trace"`

	// Sources are excerpts of the chunks the answer was generated from.
	Sources []string `json:"sources"`
}

// Engine orchestrates search → generate → grade → conditional rewrite-and-retry.
// One Answer call performs its blocking steps sequentially; concurrent queries
// are independent.
type Engine struct {
	// retriever embeds queries and searches the store.
	retriever rag.Retriever
	// generator produces answers.
	generator Generator
	// grader scores answers.
	grader Grader
	// rewriter reformulates queries.
	rewriter Rewriter
	// topK is the retrieval depth per search.
	topK int
	// gradeThreshold gates the rewrite retry.
	gradeThreshold float64
	// llmTimeout bounds each model call.
	llmTimeout time.Duration
}

// New constructs an Engine from the provided Config.
func New(cfg *Config) (*Engine, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("engine: retriever must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("engine: generator must not be nil")
	}
	if cfg.Grader == nil {
		return nil, fmt.Errorf("engine: grader must not be nil")
	}
	if cfg.Rewriter == nil {
		return nil, fmt.Errorf("engine: rewriter must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	threshold := cfg.GradeThreshold
	if threshold <= 0 {
		threshold = 0.7
	}
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Engine{
		retriever:      cfg.Retriever,
		generator:      cfg.Generator,
		grader:         cfg.Grader,
		rewriter:       cfg.Rewriter,
		topK:           topK,
		gradeThreshold: threshold,
		llmTimeout:     timeout,
	}, nil
}

// Answer runs the full query flow for one question. Model and store failures
// propagate to the caller — there is no job record to absorb them. The retry
// budget is exactly one rewrite-and-re-search; the rewritten answer is
// returned without a second grading pass.
func (e *Engine) Answer(ctx context.Context, query string) (*Result, error) {
	log := logging.FromContext(ctx)
	trace := []string{"Searching for: " + query}

	chunks, err := e.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		log.Info("engine: no chunks found", slog.String("query", query))
		return &Result{Answer: NoInformationAnswer, Trace: trace, Sources: []string{}}, nil
	}

	answer, err := e.generate(ctx, query, chunks)
	if err != nil {
		return nil, err
	}
	trace = append(trace, "Draft answer generated.")

	grade, err := e.grade(ctx, query, chunks, answer)
	if err != nil {
		return nil, err
	}
	trace = append(trace, fmt.Sprintf("Grade: %.2f", grade))
	log.Debug("engine: draft graded", slog.Float64("grade", grade))

	if grade >= e.gradeThreshold {
		return &Result{Answer: answer, Trace: trace, Sources: sourceExcerpts(chunks)}, nil
	}

	// Single bounded retry: rewrite, re-search, re-generate. The new answer
	// is trusted unconditionally.
	trace = append(trace, "Confidence low. Rewriting query...")

	rewritten, err := e.rewrite(ctx, query)
	if err != nil {
		return nil, err
	}
	trace = append(trace, "New Query: "+rewritten)
	log.Info("engine: query rewritten",
		slog.String("original", query),
		slog.String("rewritten", rewritten),
	)

	chunks2, err := e.search(ctx, rewritten)
	if err != nil {
		return nil, err
	}

	answer2, err := e.generate(ctx, rewritten, chunks2)
	if err != nil {
		return nil, err
	}
	trace = append(trace, "New answer generated.")

	return &Result{Answer: answer2, Trace: trace, Sources: sourceExcerpts(chunks2)}, nil
}

// search embeds the query and returns up to topK nearest chunks, bounded by
// the per-call timeout.
func (e *Engine) search(ctx context.Context, query string) ([]rag.Chunk, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	defer cancel()

	chunks, err := e.retriever.Retrieve(callCtx, query, e.topK)
	if err != nil {
		return nil, fmt.Errorf("engine: search failed: %w", err)
	}
	return chunks, nil
}

// generate produces an answer from the retrieved chunks.
func (e *Engine) generate(ctx context.Context, query string, chunks []rag.Chunk) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	defer cancel()

	answer, err := e.generator.Generate(callCtx, query, chunkContents(chunks))
	if err != nil {
		return "", fmt.Errorf("engine: generation failed: %w", err)
	}
	return answer, nil
}

// grade scores the answer against the concatenated chunk text.
func (e *Engine) grade(ctx context.Context, query string, chunks []rag.Chunk, answer string) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	defer cancel()

	grade, err := e.grader.Score(callCtx, query, strings.Join(chunkContents(chunks), "\n\n"), answer)
	if err != nil {
		return 0, fmt.Errorf("engine: grading failed: %w", err)
	}
	return grade, nil
}

// rewrite reformulates the query for the retry pass.
func (e *Engine) rewrite(ctx context.Context, query string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	defer cancel()

	rewritten, err := e.rewriter.Rewrite(callCtx, query)
	if err != nil {
		return "", fmt.Errorf("engine: rewrite failed: %w", err)
	}
	return rewritten, nil
}

// chunkContents returns the text of each chunk, in retrieval order.
func chunkContents(chunks []rag.Chunk) []string {
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	return contents
}

// sourceExcerpts truncates each chunk's content to a bounded preview.
func sourceExcerpts(chunks []rag.Chunk) []string {
	sources := make([]string, len(chunks))
	for i, c := range chunks {
		content := c.Content
		if len(content) > sourcePreviewLen {
			content = content[:sourcePreviewLen] + "..."
		}
		sources[i] = content
	}
	return sources
}
