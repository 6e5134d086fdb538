// Package config provides configuration management for the video researcher.
//
// Values are resolved from, lowest to highest precedence: built-in defaults, an optional YAML file, a .env file, the
// process environment and finally command-line flags, which the caller applies to the loaded Config.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/logging"
	"github.com/cchalm/video-researcher/internal/telemetry"
)

const (
	DefaultProvider         = ai.ProviderAnthropic
	DefaultMaxTokens        = 8192
	DefaultMaxSteps         = 10
	DefaultMaxParallelTools = 4
	DefaultToolTimeout      = 2 * time.Minute
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultMaxSearchResults = 5
	DefaultTikTokMaxPages   = 50
	DefaultThreadsDir       = ".video-researcher/threads"
	DefaultListenAddr       = "127.0.0.1:8080"
)

// defaultModels are used when no model is configured for a provider that has an obvious default
var defaultModels = map[string]string{
	ai.ProviderAnthropic: "claude-sonnet-4-0",
	ai.ProviderOpenAI:    "gpt-4o-mini",
}

var providers = []string{ai.ProviderAnthropic, ai.ProviderOpenAI, "ollama", "gemini", "mistral", "groq", "deepseek"}

// Config holds the configuration for the research agent and its outer surfaces
type Config struct {
	// Model
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	LLMAPIKey       string `yaml:"llm_api_key"` // Key for providers other than Anthropic and OpenAI
	LLMBaseURL      string `yaml:"llm_base_url"`
	MaxTokens       int64  `yaml:"max_tokens"`

	// Agent loop
	MaxSteps         int           `yaml:"max_steps"`
	MaxParallelTools int           `yaml:"max_parallel_tools"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`

	// Upstream platforms
	RapidAPIKey      string        `yaml:"rapidapi_key"`
	TavilyAPIKey     string        `yaml:"tavily_api_key"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	MaxSearchResults int           `yaml:"max_search_results"`
	TikTokMaxPages   int           `yaml:"tiktok_max_pages"`

	// Thread storage. PostgresDSN takes precedence over ThreadsDir
	ThreadsDir  string `yaml:"threads_dir"`
	PostgresDSN string `yaml:"postgres_dsn"`

	// Logging
	LogLevel string `yaml:"log_level"`
	NoColor  bool   `yaml:"no_color"`

	// Telemetry
	TelemetryEnabled bool   `yaml:"telemetry_enabled"`
	OTLPEndpoint     string `yaml:"otlp_endpoint"`

	// HTTP API
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the built-in defaults
func Default() Config {
	return Config{
		Provider:         DefaultProvider,
		MaxTokens:        DefaultMaxTokens,
		MaxSteps:         DefaultMaxSteps,
		MaxParallelTools: DefaultMaxParallelTools,
		ToolTimeout:      DefaultToolTimeout,
		HTTPTimeout:      DefaultHTTPTimeout,
		MaxSearchResults: DefaultMaxSearchResults,
		TikTokMaxPages:   DefaultTikTokMaxPages,
		ThreadsDir:       DefaultThreadsDir,
		LogLevel:         "info",
		ListenAddr:       DefaultListenAddr,
	}
}

// Sources names the optional files Load reads
type Sources struct {
	// ConfigFile is a YAML file. Empty skips it; a named file that does not exist is an error
	ConfigFile string
	// EnvFile is a dotenv file. A missing file is ignored
	EnvFile string
}

// Load resolves defaults, the YAML file, the .env file and the process environment, in that order
func Load(src Sources) (Config, error) {
	cfg := Default()

	if src.ConfigFile != "" {
		if err := loadFile(src.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	if src.EnvFile != "" {
		// godotenv never overrides variables already set in the process environment
		if err := godotenv.Load(src.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load env file '%s': %w", src.EnvFile, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables onto cfg, reporting every unparseable value at once
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(dest *string, key string) {
		errs = append(errs, parseOptionalFromEnv(lookup, dest, key, func(v string) (string, error) { return v, nil }))
	}
	integer := func(dest *int, key string) {
		errs = append(errs, parseOptionalFromEnv(lookup, dest, key, strconv.Atoi))
	}
	duration := func(dest *time.Duration, key string) {
		errs = append(errs, parseOptionalFromEnv(lookup, dest, key, time.ParseDuration))
	}
	boolean := func(dest *bool, key string) {
		errs = append(errs, parseOptionalFromEnv(lookup, dest, key, strconv.ParseBool))
	}

	str(&cfg.Provider, "LLM_PROVIDER")
	str(&cfg.Model, "LLM_MODEL")
	str(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	str(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	str(&cfg.LLMAPIKey, "LLM_API_KEY")
	str(&cfg.LLMBaseURL, "LLM_BASE_URL")
	errs = append(errs, parseOptionalFromEnv(lookup, &cfg.MaxTokens, "MAX_TOKENS", func(v string) (int64, error) {
		return strconv.ParseInt(v, 10, 64)
	}))

	integer(&cfg.MaxSteps, "MAX_STEPS")
	integer(&cfg.MaxParallelTools, "MAX_PARALLEL_TOOLS")
	duration(&cfg.ToolTimeout, "TOOL_TIMEOUT")

	str(&cfg.RapidAPIKey, "RAPIDAPI_KEY")
	str(&cfg.TavilyAPIKey, "TAVILY_API_KEY")
	duration(&cfg.HTTPTimeout, "HTTP_TIMEOUT")
	integer(&cfg.MaxSearchResults, "MAX_SEARCH_RESULTS")
	integer(&cfg.TikTokMaxPages, "TIKTOK_MAX_PAGES")

	str(&cfg.ThreadsDir, "THREADS_DIR")
	str(&cfg.PostgresDSN, "POSTGRES_DSN")

	str(&cfg.LogLevel, "LOG_LEVEL")
	boolean(&cfg.NoColor, "NO_COLOR")

	boolean(&cfg.TelemetryEnabled, "TELEMETRY_ENABLED")
	str(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")

	str(&cfg.ListenAddr, "LISTEN_ADDR")

	return errors.Join(errs...)
}

func parseOptionalFromEnv[T any](lookup func(string) (string, bool), dest *T, key string, parseFn func(string) (T, error)) error {
	str, ok := lookup(key)
	if !ok || str == "" {
		return nil // Leave current value
	}
	v, err := parseFn(str)
	if err != nil {
		return fmt.Errorf("failed to parse environment variable '%s' value '%s' as '%T': %w", key, str, *dest, err)
	}
	*dest = v
	return nil
}

// Validate checks the configuration, reporting every problem at once. Missing platform keys are not errors: the
// affected tools report the missing key to the model instead. They are returned as warnings
func (c Config) Validate() (warnings []string, err error) {
	var errs []error

	provider := strings.ToLower(c.Provider)
	if !isKnownProvider(provider) {
		errs = append(errs, fmt.Errorf("unknown provider '%s', expected one of %s", c.Provider, strings.Join(providers, ", ")))
	} else if c.ModelName() == "" {
		errs = append(errs, fmt.Errorf("a model must be configured for provider '%s'", c.Provider))
	}
	switch provider {
	case ai.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("missing required environment variable: ANTHROPIC_API_KEY"))
		}
	case ai.ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.LLMBaseURL == "" {
			errs = append(errs, errors.New("missing required environment variable: OPENAI_API_KEY"))
		}
	}

	if c.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("max steps must be at least 1, got %d", c.MaxSteps))
	}
	if c.MaxParallelTools < 1 {
		errs = append(errs, fmt.Errorf("max parallel tools must be at least 1, got %d", c.MaxParallelTools))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("max tokens must be at least 1, got %d", c.MaxTokens))
	}
	if c.ToolTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tool timeout must be positive, got %s", c.ToolTimeout))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout))
	}
	if c.MaxSearchResults < 1 || c.MaxSearchResults > 20 {
		errs = append(errs, fmt.Errorf("max search results must be between 1 and 20, got %d", c.MaxSearchResults))
	}
	if c.TikTokMaxPages < 1 {
		errs = append(errs, fmt.Errorf("tiktok max pages must be at least 1, got %d", c.TikTokMaxPages))
	}
	if c.ThreadsDir == "" && c.PostgresDSN == "" {
		errs = append(errs, errors.New("either a threads directory or a postgres DSN must be configured"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if c.RapidAPIKey == "" {
		warnings = append(warnings, "RAPIDAPI_KEY not set, TikTok tools will report an error when called")
	}
	if c.TavilyAPIKey == "" {
		warnings = append(warnings, "TAVILY_API_KEY not set, web search will report an error when called")
	}
	return warnings, errors.Join(errs...)
}

func isKnownProvider(p string) bool {
	for _, known := range providers {
		if p == known {
			return true
		}
	}
	return false
}

// ModelName returns the configured model, or the provider's default
func (c Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[strings.ToLower(c.Provider)]
}

// ModelConfig returns the settings for ai.NewModel, choosing the API key that belongs to the provider
func (c Config) ModelConfig() ai.ModelConfig {
	key := c.LLMAPIKey
	switch strings.ToLower(c.Provider) {
	case ai.ProviderAnthropic:
		key = c.AnthropicAPIKey
	case ai.ProviderOpenAI:
		key = c.OpenAIAPIKey
	}
	return ai.ModelConfig{
		Provider: strings.ToLower(c.Provider),
		Model:    c.ModelName(),
		APIKey:   key,
		BaseURL:  c.LLMBaseURL,
		Timeout:  c.HTTPTimeout,
	}
}

func (c Config) Telemetry(version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.TelemetryEnabled,
		OTLPEndpoint:   c.OTLPEndpoint,
		ServiceVersion: version,
	}
}

func (c Config) Logging() logging.Options {
	return logging.Options{Level: c.LogLevel, NoColor: c.NoColor}
}
