// ABOUTME: The version subcommand.
// ABOUTME: Prints the build version injected with -ldflags "-X main.version=...".
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of flowcanvas",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flowcanvas %s\n", version)
		},
	}
}
