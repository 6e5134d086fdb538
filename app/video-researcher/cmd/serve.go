package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/cchalm/video-researcher/internal/server"
)

var serveTurnTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research agent over HTTP",
	Long: `Starts a long-running JSON HTTP API for creating threads, running turns and
reading task lists and transcripts. Prometheus metrics are served on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flags.listenAddr, "addr", "", "address to listen on (default from config, 127.0.0.1:8080)")
	serveCmd.Flags().DurationVar(&serveTurnTimeout, "turn-timeout", 10*time.Minute, "maximum duration of one turn")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := setupContext()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	handler := server.NewRouter(rt.runner,
		server.WithTurnTimeout(serveTurnTimeout),
		server.WithLogger(logger),
	)
	return server.Serve(ctx, cfg.ListenAddr, handler, logger)
}
