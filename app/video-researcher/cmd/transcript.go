package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cchalm/video-researcher/internal/transcript"
)

var transcriptFlags struct {
	threadID string
	output   string
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Render a thread as markdown",
	RunE:  runTranscript,
}

func init() {
	transcriptCmd.Flags().StringVar(&transcriptFlags.threadID, "thread", "", "thread to render")
	transcriptCmd.Flags().StringVarP(&transcriptFlags.output, "output", "o", "", "file to write instead of stdout")
	_ = transcriptCmd.MarkFlagRequired("thread")
	rootCmd.AddCommand(transcriptCmd)
}

func runTranscript(cmd *cobra.Command, _ []string) error {
	ctx := setupContext()

	store, closeStore, err := openThreadStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := store.Get(ctx, transcriptFlags.threadID)
	if err != nil {
		return err
	}
	md, err := transcript.Render(*snap)
	if err != nil {
		return err
	}

	if transcriptFlags.output == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	}
	if err := os.WriteFile(transcriptFlags.output, []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	logger.Info("transcript written", "path", transcriptFlags.output)
	return nil
}
