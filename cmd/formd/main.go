package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "formd",
		Short: "Form-state server",
		Long: `Formd hosts form stores over WebSocket.

Each connection gets its own form-state container: field values,
per-field metadata and validation errors, with minimal deltas pushed
back to the client on change. Validation schemas are declared in a
YAML configuration file and selected per session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
