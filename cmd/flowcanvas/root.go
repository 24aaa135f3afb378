// ABOUTME: Root cobra command and the persistent flags shared by every subcommand.
// ABOUTME: Subcommands are constructed fresh per invocation so tests can run them in isolation.
package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowcanvas",
		Short: "A typed node-graph canvas for generative media pipelines",
		Long: `flowcanvas edits graphs of text, image, and generator nodes. Edges carry
typed values between ports; generators produce their output into render nodes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "Override the configured log level")

	root.AddCommand(
		newServeCmd(),
		newTUICmd(),
		newMCPCmd(),
		newValidateCmd(),
		newExportCmd(),
		newVersionCmd(),
	)
	return root
}
