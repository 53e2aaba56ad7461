package llm

import (
	"context"
	"fmt"
	"strings"
)

// generatorSystemPrompt constrains answers to the retrieved context so the
// model does not fall back on its own world knowledge.
const generatorSystemPrompt = `You are a helpful assistant. Answer the question based ONLY on the context below. If the context does not contain the answer, say so plainly.`

// Generator produces a natural-language answer for a query from a set of
// retrieved context chunks.
type Generator struct {
	// cm is the shared chat model.
	cm ChatModel
}

// NewGenerator constructs a Generator over the given chat model.
func NewGenerator(cm ChatModel) *Generator {
	return &Generator{cm: cm}
}

// Generate answers the query using only the provided context texts.
func (g *Generator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(contexts, "\n\n"), query)

	answer, err := generate(ctx, g.cm, generatorSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("llm: generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
