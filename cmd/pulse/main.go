// Command pulse is the entry point for the Pulse knowledge engine.
// It provides a CLI interface (via Cobra), an HTTP API server, and a
// background ingestion worker.
package main

import (
	"fmt"
	"os"

	"github.com/pulselabs/pulse/cmd/pulse/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
