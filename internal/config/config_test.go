package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func validConfig() Config {
	cfg := Default()
	cfg.AnthropicAPIKey = "sk-ant-test"
	cfg.RapidAPIKey = "rapid"
	cfg.TavilyAPIKey = "tvly"
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValidOnceKeyed(t *testing.T) {
	warnings, err := validConfig().Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "claude-sonnet-4-0", validConfig().ModelName())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	err := applyEnv(&cfg, testLookup(map[string]string{
		"LLM_PROVIDER":       "ollama",
		"LLM_MODEL":          "llama3.2",
		"LLM_BASE_URL":       "http://localhost:11434",
		"MAX_STEPS":          "4",
		"MAX_TOKENS":         "2048",
		"TOOL_TIMEOUT":       "45s",
		"RAPIDAPI_KEY":       "rapid",
		"MAX_SEARCH_RESULTS": "7",
		"POSTGRES_DSN":       "postgres://localhost/research",
		"TELEMETRY_ENABLED":  "true",
		"NO_COLOR":           "1",
		"LOG_LEVEL":          "",
	}))

	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "llama3.2", cfg.Model)
	assert.Equal(t, 4, cfg.MaxSteps)
	assert.Equal(t, int64(2048), cfg.MaxTokens)
	assert.Equal(t, 45*time.Second, cfg.ToolTimeout)
	assert.Equal(t, 7, cfg.MaxSearchResults)
	assert.Equal(t, "postgres://localhost/research", cfg.PostgresDSN)
	assert.True(t, cfg.TelemetryEnabled)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "info", cfg.LogLevel, "empty values leave the current value")
}

func TestApplyEnv_ReportsEveryBadValue(t *testing.T) {
	cfg := Default()

	err := applyEnv(&cfg, testLookup(map[string]string{
		"MAX_STEPS":    "ten",
		"TOOL_TIMEOUT": "soon",
	}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_STEPS")
	assert.Contains(t, err.Error(), "TOOL_TIMEOUT")
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
provider: openai
model: gpt-4o
max_steps: 6
tool_timeout: 90s
threads_dir: /var/lib/threads
`)
	cfg := Default()

	require.NoError(t, loadFile(path, &cfg))

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 6, cfg.MaxSteps)
	assert.Equal(t, 90*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "/var/lib/threads", cfg.ThreadsDir)
	assert.Equal(t, DefaultMaxParallelTools, cfg.MaxParallelTools, "unset keys keep their defaults")
}

func TestLoadFile_RejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.yaml", "max_stepz: 6\n")
	cfg := Default()

	err := loadFile(path, &cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_stepz")
}

func TestLoadFile_Empty(t *testing.T) {
	path := writeFile(t, "config.yaml", "")
	cfg := Default()

	assert.NoError(t, loadFile(path, &cfg))
}

func TestLoad_Precedence(t *testing.T) {
	configFile := writeFile(t, "config.yaml", "max_steps: 6\nmax_search_results: 3\nlog_level: debug\n")
	envFile := writeFile(t, ".env", "VR_TEST_UNUSED=1\nMAX_SEARCH_RESULTS=9\n")
	t.Cleanup(func() { _ = os.Unsetenv("VR_TEST_UNUSED") })
	// The process environment wins over both files. An empty variable still blocks the .env value and is then
	// ignored, leaving the config file's value
	t.Setenv("MAX_STEPS", "8")
	t.Setenv("MAX_SEARCH_RESULTS", "")

	cfg, err := Load(Sources{ConfigFile: configFile, EnvFile: envFile})

	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxSteps)
	assert.Equal(t, 3, cfg.MaxSearchResults)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "1", os.Getenv("VR_TEST_UNUSED"))
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(Sources{EnvFile: filepath.Join(t.TempDir(), "missing.env")})

	assert.NoError(t, err)
}

func TestLoad_MissingConfigFileIsAnError(t *testing.T) {
	_, err := Load(Sources{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})

	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.MaxSteps = 0
	cfg.MaxSearchResults = 50
	cfg.LogLevel = "chatty"

	warnings, err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
	assert.Contains(t, err.Error(), "max steps")
	assert.Contains(t, err.Error(), "max search results")
	assert.Contains(t, err.Error(), "chatty")
	assert.Len(t, warnings, 2)
}

func TestValidate_Providers(t *testing.T) {
	cfg := validConfig()
	cfg.Provider = "skynet"
	_, err := cfg.Validate()
	assert.ErrorContains(t, err, "unknown provider")

	cfg.Provider = "ollama"
	_, err = cfg.Validate()
	assert.ErrorContains(t, err, "a model must be configured")

	cfg.Model = "llama3.2"
	_, err = cfg.Validate()
	assert.NoError(t, err)
}

func TestModelConfig_PicksProviderKey(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAIAPIKey = "sk-openai"
	cfg.LLMAPIKey = "other"

	assert.Equal(t, "sk-ant-test", cfg.ModelConfig().APIKey)

	cfg.Provider = "OpenAI"
	mc := cfg.ModelConfig()
	assert.Equal(t, "openai", mc.Provider)
	assert.Equal(t, "sk-openai", mc.APIKey)
	assert.Equal(t, "gpt-4o-mini", mc.Model)

	cfg.Provider = "groq"
	assert.Equal(t, "other", cfg.ModelConfig().APIKey)
}
