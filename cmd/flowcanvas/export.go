// ABOUTME: The export subcommand: draws a saved document file as a DOT, SVG, or PNG diagram.
// ABOUTME: Output goes to stdout or a file; svg and png need Graphviz installed.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/2389-research/flowcanvas/diagram"
	"github.com/2389-research/flowcanvas/persist"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <document.json>",
		Short: "Draw a saved document as a Graphviz diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			engine, _ := cmd.Flags().GetString("engine")
			pinned, _ := cmd.Flags().GetBool("positions")

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var doc persist.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			nodes, edges := doc.Graph()
			dotText := diagram.ToDOT(nodes, edges, diagram.Options{Name: doc.Name, Positions: pinned})
			out, err := diagram.Engine{Command: engine}.Render(cmd.Context(), dotText, format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", "dot", "Output format: dot, svg, or png")
	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	cmd.Flags().String("engine", "dot", "Graphviz layout command, e.g. neato with --positions")
	cmd.Flags().Bool("positions", false, "Pin nodes at their canvas positions")
	return cmd
}
