// ABOUTME: The validate subcommand: lints saved document files without opening a canvas.
// ABOUTME: Prints one diagnostic per line and fails when any has error severity.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/2389-research/flowcanvas/graph/validator"
	"github.com/2389-research/flowcanvas/persist"
	"github.com/spf13/cobra"
)

var errInvalidDocument = errors.New("document has errors")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <document.json>...",
		Short: "Check saved documents for invalid nodes and connections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				ok, err := validateFile(cmd.OutOrStdout(), path)
				if err != nil {
					return err
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errInvalidDocument, failed, len(args))
			}
			return nil
		},
	}
}

// validateFile reports whether the document at path is free of errors.
func validateFile(w io.Writer, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	var doc persist.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}

	diags := validator.Lint(doc.Graph())
	if len(diags) == 0 {
		fmt.Fprintf(w, "%s: ok (%d nodes, %d edges)\n", path, len(doc.Nodes), len(doc.Edges))
		return true, nil
	}
	for _, d := range diags {
		fmt.Fprintf(w, "%s: %s\n", path, d)
	}
	return !validator.HasErrors(diags), nil
}
