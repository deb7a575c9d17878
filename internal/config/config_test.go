package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("JOURNAL_HOME", home)
	t.Setenv("JOURNAL_CONFIG", "")
	for _, key := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OLLAMA_HOST", "JOURNAL_MODEL", "JOURNAL_DB", "JOURNAL_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	return home
}

func TestDefaultsAreValid(t *testing.T) {
	home := isolate(t)
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, filepath.Join(home, "journal.db"), cfg.Database)
	require.Equal(t, "claude-sonnet-4-5", cfg.LLM.DefaultModel)
	require.Equal(t, 5, cfg.Import.BatchSize)
	require.Equal(t, 90*time.Second, cfg.LLM.Timeout)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database: /tmp/other.db
llm:
  model: gpt-4o
  timeout: 30s
log:
  level: debug
  format: json
import:
  batch_size: 3
  schedule: "*/15 * * * *"
`), 0o600))

	t.Setenv("JOURNAL_MODEL", "ollama/llama3.1")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, cfg.Path())
	require.Equal(t, "/tmp/other.db", cfg.Database)
	require.Equal(t, "ollama/llama3.1", cfg.LLM.Model)
	require.Equal(t, "sk-test", cfg.LLM.AnthropicKey)
	require.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, 3, cfg.Import.BatchSize)
	require.Equal(t, 2048, cfg.LLM.MaxTokens, "unset fields keep defaults")
	require.Equal(t, "http://localhost:11434", cfg.LLM.OllamaHost)
}

func TestLoadMissingFile(t *testing.T) {
	home := isolate(t)

	_, err := Load(filepath.Join(home, "nope.yaml"))
	require.Error(t, err, "an explicit path must exist")

	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Empty(t, cfg.Path())
}

func TestValidateRejectsBadValues(t *testing.T) {
	isolate(t)
	cases := map[string]func(*Config){
		"timeout":   func(c *Config) { c.LLM.Timeout = 0 },
		"level":     func(c *Config) { c.Log.Level = "loud" },
		"format":    func(c *Config) { c.Log.Format = "xml" },
		"batch":     func(c *Config) { c.Import.BatchSize = 0 },
		"big batch": func(c *Config) { c.Import.BatchSize = 500 },
		"schedule":  func(c *Config) { c.Import.Schedule = "whenever" },
		"rate":      func(c *Config) { c.Import.FetchPerMinute = 0 },
		"database":  func(c *Config) { c.Database = "" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		require.Error(t, cfg.Validate(), name)
	}
}

func TestSaveDropsCredentials(t *testing.T) {
	home := isolate(t)
	cfg := Default()
	cfg.LLM.AnthropicKey = "secret"
	cfg.LLM.Model = "gpt-4o-mini"
	path := filepath.Join(home, "nested", "config.yaml")
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "secret")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", loaded.LLM.Model)
	require.Equal(t, cfg.LLM.Timeout, loaded.LLM.Timeout)
}
