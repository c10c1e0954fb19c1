package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitrdm/loomwork/internal/snapshot"
)

// newSnapshotCommand groups small utilities for working with the YAML
// snapshot files the repl and run commands save, without needing a
// session loop.
func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect a loomwork session snapshot file",
	}
	cmd.AddCommand(newSnapshotInspectCommand())
	return cmd
}

func newSnapshotInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path>",
		Short: "Print a summary of a saved session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "content entries:   %d\n", len(snap.Content))
			fmt.Fprintf(out, "pending promises:  %d\n", len(snap.Promises))
			fmt.Fprintf(out, "aliases:           %d\n", len(snap.Aliases))
			fmt.Fprintf(out, "contexts:          %d\n", len(snap.Contexts))
			fmt.Fprintf(out, "active contexts:   %d\n", len(snap.ActiveContexts))
			fmt.Fprintf(out, "pending contexts:  %d\n", len(snap.PendingContexts))
			return nil
		},
	}
}
