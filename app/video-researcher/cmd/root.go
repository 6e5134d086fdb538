package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cchalm/video-researcher/internal/config"
	"github.com/cchalm/video-researcher/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "video-researcher",
	Short: "AI research agent for short-form video trends",
	Long: `Video Researcher is a generative AI agent that researches short-form video trends.
It plans its work with a task list, looks up TikTok hashtags and their posts, and
searches the web, then answers with what it found. Conversations are kept as
threads so research can continue across turns.`,
	PersistentPreRunE: loadRootConfig,
	SilenceUsage:      true,
}

func Execute() error {
	return rootCmd.Execute()
}

// loadRootConfig resolves the configuration and installs the logger before any subcommand runs
func loadRootConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(config.Sources{ConfigFile: flags.configFile, EnvFile: flags.envFile})
	if err != nil {
		return err
	}
	applyFlags(cmd, &loaded)
	cfg = loaded

	logger, err = logging.New(os.Stderr, cfg.Logging())
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	slog.SetDefault(logger)
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML configuration file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file to load if present")
	pf.StringVar(&flags.provider, "provider", "", "model provider (anthropic, openai, ollama, gemini, mistral, groq, deepseek)")
	pf.StringVar(&flags.model, "model", "", "model name")
	pf.IntVar(&flags.maxSteps, "max-steps", 0, "reasoning steps allowed per turn")
	pf.IntVar(&flags.maxParallelTools, "max-parallel-tools", 0, "tool calls of one step that may run at once")
	pf.StringVar(&flags.threadsDir, "threads-dir", "", "directory threads are stored in")
	pf.StringVar(&flags.postgresDSN, "postgres-dsn", "", "PostgreSQL DSN to store threads in instead of a directory")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored log output")
	pf.BoolVar(&flags.telemetry, "telemetry", false, "enable tracing and metrics export")
}
