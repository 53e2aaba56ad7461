package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel returns a canned reply (or error) for every Generate call.
type fakeChatModel struct {
	// reply is the canned response content.
	reply string
	// err is returned instead of a reply when non-nil.
	err error
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func TestParseScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{name: "bare float", reply: "0.8", want: 0.8},
		{name: "bare integer one", reply: "1", want: 1},
		{name: "zero", reply: "0.0", want: 0},
		{name: "wrapped in prose", reply: "I would rate this answer 0.75 out of 1.", want: 0.75},
		{name: "leading decimal point", reply: ".9", want: 0.9},
		{name: "above range clamped", reply: "8.5", want: 1},
		{name: "no number defaults to neutral", reply: "The answer looks fine to me.", want: 0.5},
		{name: "empty reply defaults to neutral", reply: "", want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseScore(tt.reply); got != tt.want {
				t.Errorf("parseScore(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func Test_Grader_ScoreParsesModelReply(t *testing.T) {
	t.Parallel()
	g := NewGrader(&fakeChatModel{reply: "Score: 0.9"})

	score, err := g.Score(context.Background(), "q", "ctx", "a")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 0.9 {
		t.Errorf("want 0.9, got %v", score)
	}
}

func Test_Grader_ScorePropagatesModelError(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("backend down")
	g := NewGrader(&fakeChatModel{err: wantErr})

	if _, err := g.Score(context.Background(), "q", "ctx", "a"); !errors.Is(err, wantErr) {
		t.Fatalf("want wrapped backend error, got %v", err)
	}
}

func Test_Rewriter_EmptyReplyKeepsOriginalQuery(t *testing.T) {
	t.Parallel()
	r := NewRewriter(&fakeChatModel{reply: "  "})

	got, err := r.Rewrite(context.Background(), "tell me about it")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got != "tell me about it" {
		t.Errorf("want original query back, got %q", got)
	}
}

func Test_Rewriter_StripsQuotes(t *testing.T) {
	t.Parallel()
	r := NewRewriter(&fakeChatModel{reply: `"What is the Pulse ingestion pipeline?"`})

	got, err := r.Rewrite(context.Background(), "tell me about it")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got != "What is the Pulse ingestion pipeline?" {
		t.Errorf("unexpected rewrite: %q", got)
	}
}
