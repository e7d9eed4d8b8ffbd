package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-quiz-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("QUIZ_LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, config.SourceLLM, cfg.Quiz.Source)
	assert.Equal(t, 4000, cfg.Documents.MaxChars)
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte(`
server:
  port: "9090"
llm:
  model: file-model
  api_key: from-file
quiz:
  source: static
  cache_ttl: 5m
documents:
  max_chars: 1000
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv("QUIZ_LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("QUIZ_LLM_MODEL", "env-model")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, config.SourceStatic, cfg.Quiz.Source)
	assert.Equal(t, 1000, cfg.Documents.MaxChars)
	assert.Equal(t, 5*time.Minute, config.TTLDuration(cfg.Quiz.CacheTTL, 0))
}

func TestValidateRejectsBankWithoutPostgres(t *testing.T) {
	cfg := config.Default()
	cfg.Quiz.Source = config.SourceBank
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.url")
}

func TestValidateRejectsUnknownSource(t *testing.T) {
	cfg := config.Default()
	cfg.Quiz.Source = "oracle"
	assert.Error(t, cfg.Validate())
}

func TestTTLDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, config.TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, config.TTLDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, config.TTLDuration("2s", time.Minute))
}
