package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// graderSystemPrompt asks for a bare score so parsing stays trivial. Models
// still wrap it in prose often enough that parseScore scans for the number.
const graderSystemPrompt = `You are a strict grader. Given a question, supporting context, and a candidate answer, rate how relevant and well-grounded the answer is on a scale from 0.0 to 1.0. Respond with ONLY the number.`

// neutralScore is used when the grader's output contains no parseable number.
// A flaky grader degrades to "uncertain" instead of blocking the answer.
const neutralScore = 0.5

// scorePattern matches the first decimal number in the grader's reply.
var scorePattern = regexp.MustCompile(`[0-9]*\.?[0-9]+`)

// Grader scores a generated answer's relevance against the query and context
// on a 0.0–1.0 scale.
type Grader struct {
	// cm is the shared chat model.
	cm ChatModel
}

// NewGrader constructs a Grader over the given chat model.
func NewGrader(cm ChatModel) *Grader {
	return &Grader{cm: cm}
}

// Score grades answer against query and context. A model transport failure is
// returned to the caller; unparseable grader output is recovered locally to
// the neutral score.
func (g *Grader) Score(ctx context.Context, query, context_, answer string) (float64, error) {
	prompt := fmt.Sprintf("Question: %s\n\nContext:\n%s\n\nAnswer: %s\n\nScore:", query, context_, answer)

	reply, err := generate(ctx, g.cm, graderSystemPrompt, prompt)
	if err != nil {
		return 0, fmt.Errorf("llm: grade answer: %w", err)
	}

	return parseScore(reply), nil
}

// parseScore extracts the first number from the grader's reply, clamped to
// [0, 1]. Replies with no number at all yield the neutral score.
func parseScore(reply string) float64 {
	match := scorePattern.FindString(reply)
	if match == "" {
		return neutralScore
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return neutralScore
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
