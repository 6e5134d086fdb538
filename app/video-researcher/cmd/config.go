package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cchalm/video-researcher/internal/config"
)

var (
	cfg    = config.Default()
	logger = slog.Default()
)

// flags holds command-line values. Only flags the user actually set override the loaded configuration
var flags struct {
	configFile string
	envFile    string

	provider         string
	model            string
	maxSteps         int
	maxParallelTools int
	threadsDir       string
	postgresDSN      string
	logLevel         string
	noColor          bool
	telemetry        bool
	listenAddr       string
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("provider") {
		c.Provider = flags.provider
	}
	if changed("model") {
		c.Model = flags.model
	}
	if changed("max-steps") {
		c.MaxSteps = flags.maxSteps
	}
	if changed("max-parallel-tools") {
		c.MaxParallelTools = flags.maxParallelTools
	}
	if changed("threads-dir") {
		c.ThreadsDir = flags.threadsDir
	}
	if changed("postgres-dsn") {
		c.PostgresDSN = flags.postgresDSN
	}
	if changed("log-level") {
		c.LogLevel = flags.logLevel
	}
	if changed("no-color") {
		c.NoColor = flags.noColor
	}
	if changed("telemetry") {
		c.TelemetryEnabled = flags.telemetry
	}
	if changed("addr") {
		c.ListenAddr = flags.listenAddr
	}
}
