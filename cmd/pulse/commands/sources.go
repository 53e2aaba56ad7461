package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulselabs/pulse/internal/logging"
)

// NewSourcesCmd constructs the `pulse sources` command and its `rm`
// subcommand for inspecting and pruning the ingested corpus.
func NewSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List ingested sources",
		Long: `List the distinct source URLs currently in the vector store.

Examples:
  pulse sources
  pulse sources rm https://example.com/outdated-doc`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			store, err := openQdrantStore(ctx, log)
			if err != nil {
				return fmt.Errorf("sources: %w", err)
			}
			defer store.Close()

			sources, err := store.DistinctSources(ctx)
			if err != nil {
				return fmt.Errorf("sources: %w", err)
			}
			if len(sources) == 0 {
				fmt.Println("no sources ingested")
				return nil
			}
			for _, s := range sources {
				fmt.Println(s)
			}
			return nil
		},
	}

	cmd.AddCommand(newSourcesRmCmd())

	return cmd
}

// newSourcesRmCmd constructs `pulse sources rm`, which deletes every chunk
// ingested from the given source URL.
func newSourcesRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [url]",
		Short: "Delete all chunks ingested from a source URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			store, err := openQdrantStore(ctx, log)
			if err != nil {
				return fmt.Errorf("sources rm: %w", err)
			}
			defer store.Close()

			if err := store.DeleteBySource(ctx, args[0]); err != nil {
				return fmt.Errorf("sources rm: %w", err)
			}
			fmt.Printf("deleted chunks from %s\n", args[0])
			return nil
		},
	}
}
