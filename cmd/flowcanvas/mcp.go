// ABOUTME: The mcp subcommand: serves one canvas to an MCP client over stdio.
// ABOUTME: The canvas can start from a saved document; logs go to stderr because stdout carries the protocol.
package main

import (
	"github.com/2389-research/flowcanvas/mcpserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve canvas tools over the Model Context Protocol (stdio)",
		Long:  `Exposes one canvas to an MCP client. Stdout carries the protocol; logs go to stderr.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(cmd, "stderr")
			if err != nil {
				return err
			}
			defer rt.Close()

			store, machine := rt.newCanvas()
			defer machine.Close()
			if open, _ := cmd.Flags().GetString("open"); open != "" {
				if _, err := rt.openDocument(cmd.Context(), store, open); err != nil {
					return err
				}
			}

			rt.logger.Info("mcp server starting", zap.String("version", version))
			return mcpserver.New(store, machine, version, rt.logger.Named("mcp")).ServeStdio()
		},
	}
	cmd.Flags().String("open", "", "Open a saved document by id")
	return cmd
}
