// Package llm wraps single prompt-to-text calls against an Eino ChatModel as
// the three narrow components the query engine needs: answer generation,
// answer grading, and query rewriting. Each component holds its own prompt;
// all three share one underlying model.
package llm

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel is the minimal model surface the components call. Any Eino
// ChatModel satisfies it; tests inject a fake.
type ChatModel interface {
	// Generate produces a single completion for the given messages.
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// generate runs one system+user prompt against the model and returns the
// response text.
func generate(ctx context.Context, cm ChatModel, system, user string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	resp, err := cm.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}
