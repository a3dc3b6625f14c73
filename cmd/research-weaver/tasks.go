// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List saved research tasks",
	Long: `Tasks lists every research task in the persistence backend, most recently
updated first. Use a task id with research --resume, outline show or
evidence export.`,
	RunE: runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	store, err := requireStore(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.ListTasks(context.Background())
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-9s  %-20s  %s\n", "Task", "Iteration", "Updated", "Query")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, t := range tasks {
		query := t.Query
		if len(query) > 40 {
			query = query[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %9d  %-20s  %s\n", t.TaskID, t.Iteration, t.UpdatedAt.Local().Format(time.DateTime), query)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
