package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes of the harness. CI jobs key off these.
const (
	// ExitCodeSuccess indicates every executed scenario passed.
	ExitCodeSuccess = 0
	// ExitCodeFailure indicates at least one scenario failed, or a
	// prerequisite (such as IMAGE_NAME) was missing.
	ExitCodeFailure = 1
)

// rootCmd is the entry point of the harness binary.
var rootCmd = &cobra.Command{
	Use:   "postgresql-container",
	Short: "Integration tests for the PostgreSQL container image",
	Long: `postgresql-container drives integration tests against a containerized
PostgreSQL image: container lifecycle, configuration and authentication
surfaces, streaming replication and the in-place upgrade path.

The image under test is taken from IMAGE_NAME; the container runtime and the
database client are reached through their command line interfaces.`,
	// Handled errors should not dump usage text on the operator.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, injected by main at
// build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the CLI and exits the process with the appropriate code.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "postgresql-container version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeFailure)
	}
}
