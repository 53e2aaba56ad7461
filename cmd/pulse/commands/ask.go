package commands

import (
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/pulselabs/pulse/internal/embedder"
	"github.com/pulselabs/pulse/internal/logging"
	"github.com/pulselabs/pulse/internal/rag"
	"github.com/pulselabs/pulse/internal/tracing"
)

// NewAskCmd constructs the `pulse ask` command, which answers a single
// question against the ingested corpus and prints the result.
func NewAskCmd() *cobra.Command {
	var showTrace bool
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the knowledge base",
		Long: `Ask a natural language question against the ingested corpus.

The engine retrieves the most relevant chunks, drafts an answer, grades its
own confidence, and rewrites the question for one retry when confidence is
low. Use --trace to see each step it took.

Examples:
  pulse ask "what is retrieval-augmented generation?"
  pulse ask --trace "how does the grading loop work?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			store, err := openQdrantStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise embedder: %w", err)
			}

			retriever, err := rag.NewRetriever(emb, store, getEnvInt("ENGINE_TOP_K", 3))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			eng, err := buildEngine(ctx, retriever, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			result, err := eng.Answer(ctx, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			if showTrace {
				for _, step := range result.Trace {
					fmt.Println("·", step)
				}
				fmt.Println()
			}

			fmt.Println(result.Answer)

			if showSources && len(result.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range result.Sources {
					fmt.Println("-", src)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print each step of the retrieval loop")
	cmd.Flags().BoolVar(&showSources, "sources", false, "Print excerpts of the chunks used")

	return cmd
}
