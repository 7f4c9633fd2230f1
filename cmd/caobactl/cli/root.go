package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "caobactl",
	Short:   "Operations CLI for the Caoba back office",
	Long:    `caobactl runs back-office maintenance tasks against a Caoba deployment: reconciliation sweeps, payables aging reports, and invoice statistics.`,
	Version: version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
