// ABOUTME: The tui subcommand: edits one canvas in the terminal, optionally opening and saving a document.
// ABOUTME: Logs go to a file when requested, since the terminal belongs to the UI.
package main

import (
	"fmt"
	"time"

	"github.com/2389-research/flowcanvas/persist"
	"github.com/2389-research/flowcanvas/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Edit a canvas in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logFile, _ := cmd.Flags().GetString("log-file")
			open, _ := cmd.Flags().GetString("open")
			name, _ := cmd.Flags().GetString("name")
			save, _ := cmd.Flags().GetBool("save")

			rt, err := loadRuntime(cmd, logFile)
			if err != nil {
				return err
			}
			defer rt.Close()
			if save && rt.repo == nil {
				return fmt.Errorf("--save needs a storage driver")
			}

			ctx := cmd.Context()
			store, machine := rt.newCanvas()
			defer machine.Close()

			docID := ""
			if open != "" {
				doc, err := rt.openDocument(ctx, store, open)
				if err != nil {
					return err
				}
				docID = doc.ID
				if name == "" {
					name = doc.Name
				}
			}
			if name == "" {
				name = "untitled"
			}

			if err := tui.Run(ctx, store, machine, name, rt.logger.Named("tui")); err != nil {
				return err
			}
			if !save {
				return nil
			}
			doc := persist.FromState(docID, name, store.GetState(), time.Now())
			if err := rt.repo.Save(ctx, doc); err != nil {
				return fmt.Errorf("save document: %w", err)
			}
			rt.logger.Info("document saved", zap.String("document", doc.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", doc.Name, doc.ID)
			return nil
		},
	}
	cmd.Flags().String("open", "", "Open a saved document by id")
	cmd.Flags().String("name", "", "Canvas name shown in the status bar")
	cmd.Flags().Bool("save", false, "Save the canvas when the UI exits")
	cmd.Flags().String("log-file", "", "Write logs to this file")
	return cmd
}
