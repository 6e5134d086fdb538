package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askThreadID string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the agent one question",
	Long: `Runs a single research turn and prints the answer. Pass --thread to continue an
existing thread; otherwise a new thread is started and its id is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askThreadID, "thread", "", "thread to continue")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := setupContext()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	result, err := rt.runner.RunTurn(ctx, askThreadID, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("research turn failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.FinalAnswer)
	fmt.Fprintf(cmd.ErrOrStderr(), "\nthread: %s (%d steps)\n", result.ThreadID, result.Steps)
	if result.BudgetExhausted {
		fmt.Fprintln(cmd.ErrOrStderr(), "the step limit was reached; ask again on this thread to continue")
	}
	return nil
}
