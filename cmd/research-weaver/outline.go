// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-weaver/internal/persist"
	"github.com/pdiddy/research-weaver/pkg/types"
)

var outlineCmd = &cobra.Command{
	Use:   "outline",
	Short: "Inspect saved outlines",
}

var outlineShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Print a task's latest outline as a tree",
	Long: `Show prints the latest saved outline of a task with each node's coverage
and evidence count. Frozen nodes, whose searches stalled, are marked with *.`,
	Args: cobra.ExactArgs(1),
	RunE: runOutlineShow,
}

func runOutlineShow(cmd *cobra.Command, args []string) error {
	store, err := requireStore(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}
	if snap.Outline == nil {
		return fmt.Errorf("task %s has no saved outline", args[0])
	}

	if formatName, _ := cmd.Flags().GetString("format"); formatName != "" {
		format, err := persist.ParseFormat(formatName)
		if err != nil {
			return err
		}
		return persist.Encode(os.Stdout, snap.Outline, format)
	}
	printOutline(os.Stdout, snap.Outline, snap.Iteration)
	return nil
}

func printOutline(w io.Writer, o *types.Outline, iteration int) {
	state := "in progress"
	if o.Finalized {
		state = "finalized"
	}
	fmt.Fprintf(w, "%s (version %d, iteration %d, %s, completeness %.2f)\n",
		o.Title, o.Version, iteration, state, o.OverallCompleteness)
	for _, n := range o.PreOrder() {
		if n.NodeID == o.RootID {
			continue
		}
		mark := ""
		if n.Frozen {
			mark = " *"
		}
		fmt.Fprintf(w, "%s- [%s] %s  coverage %.2f, %d evidence%s\n",
			strings.Repeat("  ", n.Level-1), n.NodeID, n.Title, n.CoverageScore, len(n.CitedEvidenceIDs), mark)
	}
}

func init() {
	outlineShowCmd.Flags().String("format", "", "print the raw outline as yaml or json instead of a tree")

	outlineCmd.AddCommand(outlineShowCmd)
	rootCmd.AddCommand(outlineCmd)
}
