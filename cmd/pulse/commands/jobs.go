package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulselabs/pulse/internal/logging"
)

// NewJobsCmd constructs the `pulse jobs` command, which lists recent
// ingestion jobs from the shared tracker.
func NewJobsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent ingestion jobs",
		Long: `List recent ingestion jobs, newest first.

Each row shows the job ID, status (PENDING, PROCESSING, COMPLETED, FAILED),
the submitted URL, and the result or failure detail.

Examples:
  pulse jobs
  pulse jobs --limit 100`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			tracker, err := openTracker(log)
			if err != nil {
				return fmt.Errorf("jobs: %w", err)
			}
			defer tracker.Close()

			list, err := tracker.ListRecent(ctx, limit)
			if err != nil {
				return fmt.Errorf("jobs: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("no jobs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tURL\tRESULT")
			for _, j := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					j.ID, j.Status, j.CreatedAt.Format(time.RFC3339), j.URL, j.Result)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list")

	return cmd
}
