package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olavtom/postgresql-container/internal/harness"
	"github.com/olavtom/postgresql-container/internal/scenarios"
)

// listCmd prints the registered scenarios in execution order.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered test scenarios in execution order",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := harness.NewRegistry()
		// Registration only needs the run functions to exist, not to be
		// runnable, so an empty environment is enough for listing.
		scenarios.Register(registry, &scenarios.Env{})

		for _, s := range registry.All() {
			fmt.Printf("%-24s %s\n", s.Name, s.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
