// Package commands defines all Cobra CLI commands for the pulse binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/pulselabs/pulse/internal/audit"
	"github.com/pulselabs/pulse/internal/config"
	"github.com/pulselabs/pulse/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pulse",
		Short: "Pulse — self-correcting AI knowledge engine",
		Long: `Pulse turns web pages into a queryable knowledge base.

URLs are fetched, cleaned, chunked, and embedded into a vector store by
background workers. Questions are answered from the ingested corpus with a
self-correcting loop: the draft answer is graded and, when confidence is
low, the question is rewritten and retried once.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.pulse/config.yaml).
See 'pulse --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.pulse/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewWorkerCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewJobsCmd(),
		NewSourcesCmd(),
		NewVersionCmd(),
	)

	return root
}
