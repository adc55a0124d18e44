package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsToOpenAIProvider(t *testing.T) {
	clearEnv(t, "LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL")
	cfg := Load()
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoadDeepseekMapsToOpenAICompatibleConfig(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "deepseek")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	cfg := Load()
	assert.Equal(t, "deepseek", cfg.LLMProvider)
	assert.Equal(t, "openai", cfg.LLM.Provider, "deepseek speaks the OpenAI-compatible wire protocol")
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.LLM.BaseURL)
}

func TestLoadParsesCORSOriginsCSV(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	cfg := Load()
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadParsesBooleans(t *testing.T) {
	t.Setenv("TRACE_EVENTS", "true")
	t.Setenv("DEBUG_GRAPH_EVENTS", "1")
	cfg := Load()
	assert.True(t, cfg.TraceEvents)
	assert.True(t, cfg.DebugGraphEvents)
}

func TestValidateRequiresAPIKeyForSelectedProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("JWT_SECRET", "shh")
	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JWT_SECRET", "")
	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidatePassesWithCompleteOpenAIConfig(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JWT_SECRET", "shh")
	t.Setenv("PG_DSN", "postgres://localhost/test")
	cfg := Load()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "made-up")
	t.Setenv("JWT_SECRET", "shh")
	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_PROVIDER")
}

func TestValidateRejectsUnknownPlannerMethod(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JWT_SECRET", "shh")
	t.Setenv("STRUCTURED_PLANNER_METHOD", "bogus")
	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRUCTURED_PLANNER_METHOD")
}
