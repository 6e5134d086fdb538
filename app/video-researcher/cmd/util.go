package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cchalm/video-researcher/internal/agent"
	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/engine"
	"github.com/cchalm/video-researcher/internal/tavily"
	"github.com/cchalm/video-researcher/internal/telemetry"
	"github.com/cchalm/video-researcher/internal/thread"
	"github.com/cchalm/video-researcher/internal/tiktok"
	"github.com/cchalm/video-researcher/internal/tools"
)

func setupContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	// Setup graceful shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		logger.Info("interrupt signal detected, shutting down gracefully...")
		cancel()
		<-interrupt
		logger.Error("forcing shutdown")
		os.Exit(1)
	}()

	return ctx
}

// openThreadStore returns the configured thread store and a function that releases it
func openThreadStore(ctx context.Context) (thread.Store, func(), error) {
	if cfg.PostgresDSN != "" {
		store, closeFn, err := thread.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("storing threads in postgres")
		return store, closeFn, nil
	}
	store, err := thread.NewFileSystemStore(cfg.ThreadsDir)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("storing threads on disk", "dir", cfg.ThreadsDir)
	return store, func() {}, nil
}

// runtime is everything a command needs to run turns
type runtime struct {
	runner *engine.Runner
	close  func()
}

// buildRuntime validates the configuration and wires telemetry, the model, the tools and thread storage into a
// turn runner
func buildRuntime(ctx context.Context) (*runtime, error) {
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	shutdownTelemetry, err := telemetry.InitProvider(ctx, cfg.Telemetry(versionInfo.Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	model, err := ai.NewModel(cfg.ModelConfig(), logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create model: %w", err), shutdownTelemetry(ctx))
	}

	registry, err := tools.NewToolRegistry(
		tools.DefaultTools(createToolDependencies()),
		tools.WithCallTimeout(cfg.ToolTimeout),
		tools.WithLogger(logger),
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create tool registry: %w", err), shutdownTelemetry(ctx))
	}

	store, closeStore, err := openThreadStore(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open thread store: %w", err), shutdownTelemetry(ctx))
	}

	graph := agent.NewGraph(model, registry,
		agent.WithMaxSteps(cfg.MaxSteps),
		agent.WithMaxParallelTools(cfg.MaxParallelTools),
		agent.WithMaxTokens(cfg.MaxTokens),
		agent.WithLogger(logger),
	)
	logger.Debug("agent ready", "model", model.Name(), "tools", registry.Names(), "max_steps", graph.MaxSteps())

	return &runtime{
		runner: engine.NewRunner(graph, store, engine.WithLogger(logger)),
		close: func() {
			closeStore()
			if err := shutdownTelemetry(context.Background()); err != nil {
				logger.Warn("failed to shut down telemetry", "error", err)
			}
		},
	}, nil
}

func createToolDependencies() tools.Dependencies {
	deps := tools.Dependencies{
		MaxSearchResults: cfg.MaxSearchResults,
		TikTokMaxPages:   cfg.TikTokMaxPages,
	}
	if cfg.RapidAPIKey != "" {
		deps.TikTok = tiktok.NewClient(cfg.RapidAPIKey, cfg.HTTPTimeout, tiktok.WithLogger(logger))
	}
	if cfg.TavilyAPIKey != "" {
		deps.Tavily = tavily.NewClient(cfg.TavilyAPIKey, cfg.HTTPTimeout, tavily.WithLogger(logger))
	}
	return deps
}
