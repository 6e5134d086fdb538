package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cchalm/video-researcher/internal/engine"
	"github.com/cchalm/video-researcher/internal/task"
	"github.com/cchalm/video-researcher/internal/thread"
)

var chatThreadID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive research session",
	Long: `Reads questions from standard input and answers each one as a turn of the same
thread. Type /tasks to show the task list and /exit to quit.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatThreadID, "thread", "", "thread to continue")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := setupContext()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	threadID := chatThreadID
	if threadID == "" {
		snap, err := rt.runner.CreateThread(ctx)
		if err != nil {
			return err
		}
		threadID = snap.ThreadID
	}
	return chatLoop(ctx, rt.runner, threadID, cmd.InOrStdin(), cmd.OutOrStdout())
}

// chatEngine is the part of engine.Runner the REPL uses
type chatEngine interface {
	RunTurn(ctx context.Context, threadID, text string) (*engine.TurnResult, error)
	Tasks(ctx context.Context, threadID string) ([]task.Task, task.Counts, error)
}

func chatLoop(ctx context.Context, runner chatEngine, threadID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "thread %s, /exit to quit\n", threadID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/tasks":
			tasks, counts, err := runner.Tasks(ctx, threadID)
			if errors.Is(err, thread.ErrNotFound) {
				// Nothing has been persisted for this thread yet
				tasks, counts, err = nil, task.Counts{}, nil
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			printTasks(out, tasks, counts)
			continue
		}

		result, err := runner.RunTurn(ctx, threadID, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "\n%s\n\n", result.FinalAnswer)
		if result.BudgetExhausted {
			fmt.Fprintln(out, "(step limit reached, ask me to continue)")
		}
	}
}
