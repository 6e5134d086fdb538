package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cchalm/video-researcher/internal/task"
)

var tasksFlags struct {
	threadID string
	json     bool
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show a thread's task list",
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().StringVar(&tasksFlags.threadID, "thread", "", "thread whose tasks to show")
	tasksCmd.Flags().BoolVar(&tasksFlags.json, "json", false, "print the tasks as JSON")
	_ = tasksCmd.MarkFlagRequired("thread")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, _ []string) error {
	ctx := setupContext()

	store, closeStore, err := openThreadStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := store.Get(ctx, tasksFlags.threadID)
	if err != nil {
		return err
	}
	tasks := snap.Tasks.Tasks
	if tasks == nil {
		tasks = []task.Task{}
	}
	counts := task.Summarize(tasks)

	if tasksFlags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"tasks": tasks, "summary": counts.String(), "counts": counts})
	}
	printTasks(cmd.OutOrStdout(), tasks, counts)
	return nil
}

func printTasks(out io.Writer, tasks []task.Task, counts task.Counts) {
	fmt.Fprintln(out, counts.String())
	if len(tasks) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDESCRIPTION")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Description)
	}
	_ = tw.Flush()
}
