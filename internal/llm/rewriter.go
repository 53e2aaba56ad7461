package llm

import (
	"context"
	"fmt"
	"strings"
)

// rewriterSystemPrompt reformulates vague questions into retrievable ones.
const rewriterSystemPrompt = `You rewrite vague or underspecified questions into clear, specific search queries for a document knowledge base. Respond with ONLY the rewritten question.`

// Rewriter reformulates a query to improve retrieval recall.
type Rewriter struct {
	// cm is the shared chat model.
	cm ChatModel
}

// NewRewriter constructs a Rewriter over the given chat model.
func NewRewriter(cm ChatModel) *Rewriter {
	return &Rewriter{cm: cm}
}

// Rewrite returns a reformulation of query. If the model returns an empty
// reply the original query is returned unchanged so retrieval can proceed.
func (r *Rewriter) Rewrite(ctx context.Context, query string) (string, error) {
	reply, err := generate(ctx, r.cm, rewriterSystemPrompt, "Question: "+query)
	if err != nil {
		return "", fmt.Errorf("llm: rewrite query: %w", err)
	}

	rewritten := strings.TrimSpace(strings.Trim(strings.TrimSpace(reply), `"`))
	if rewritten == "" {
		return query, nil
	}
	return rewritten, nil
}
