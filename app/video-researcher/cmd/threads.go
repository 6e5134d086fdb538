package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List stored threads, most recent first",
	RunE:  runThreads,
}

var deleteThreadCmd = &cobra.Command{
	Use:   "delete <thread-id>",
	Short: "Delete a stored thread",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteThread,
}

func init() {
	threadsCmd.AddCommand(deleteThreadCmd)
	rootCmd.AddCommand(threadsCmd)
}

func runThreads(cmd *cobra.Command, _ []string) error {
	ctx := setupContext()

	store, closeStore, err := openThreadStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	infos, err := store.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "THREAD\tMESSAGES\tTASKS\tUPDATED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n",
			info.ThreadID, info.MessageCount, info.TaskCount, info.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runDeleteThread(cmd *cobra.Command, args []string) error {
	ctx := setupContext()

	store, closeStore, err := openThreadStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}
