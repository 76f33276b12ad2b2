package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 5, cfg.Specialist.MaxConcurrent)
	assert.Equal(t, 1, cfg.Orchestrator.MaxReflections)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.NoError(t, cfg.validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
ollama:
  base_url: http://ollama:11434
  model: qwen2.5
retrieval:
  base_url: http://graphiti:8000
  max_candidates: 20
specialist:
  max_concurrent: 3
  task_timeout: 90s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://ollama:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "qwen2.5", cfg.Ollama.Model)
	assert.Equal(t, 20, cfg.Retrieval.MaxCandidates)
	assert.Equal(t, 3, cfg.Specialist.MaxConcurrent)
	assert.Equal(t, 90*time.Second, cfg.TaskTimeout())

	// Defaults fill unspecified sections
	assert.Equal(t, 6, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 0.7, cfg.Ollama.Temperature)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)

	cfg := LoadOrDefault("/nonexistent/config.yaml")
	require.NotNil(t, cfg)
	assert.Equal(t, Default().Ollama.Model, cfg.Ollama.Model)
}

func TestValidateRejectsBadTimeout(t *testing.T) {
	cfg := Default()
	cfg.Specialist.TaskTimeout = "not-a-duration"
	assert.Error(t, cfg.validate())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("SPECIALIST_MAX_CONCURRENT", "8")

	cfg := Default()
	cfg.overrideFromEnv()

	assert.Equal(t, "mistral", cfg.Ollama.Model)
	assert.Equal(t, 8, cfg.Specialist.MaxConcurrent)
}
