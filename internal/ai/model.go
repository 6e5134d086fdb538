package ai

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ModelConfig selects and configures a model provider
type ModelConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewModel constructs the adapter for cfg.Provider
func NewModel(cfg ModelConfig, logger *slog.Logger) (Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic: api key must not be empty")
		}
		return NewAnthropicModel(NewAnthropicClient(cfg.APIKey), cfg.Model, logger), nil
	case ProviderOpenAI:
		return NewOpenAIModel(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
	default:
		var opts []anyllmlib.Option
		if cfg.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
		}
		return NewAnyLLMModel(cfg.Provider, cfg.Model, opts...)
	}
}
